// Command cartctl inspects and edits one session cart directly in the
// configured backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"Storefront/internal/cart"
	"Storefront/internal/catalog"
	"Storefront/internal/config"
	"Storefront/internal/kv"
	"Storefront/pkg/kit"
)

const usage = `usage: cartctl [flags] <command> [args]

commands:
  list                          show cart lines and totals
  totals                        show item count and subtotal
  add PRODUCT [WEIGHT] [QTY]    add a catalog product; no WEIGHT means quick add
  set ITEM_ID QTY               change a line's quantity
  remove ITEM_ID                drop a line
  clear                         empty the cart
`

var errUsage = errors.New("bad usage")

func main() {
	var (
		cfg     config.Config
		session string
	)
	fs := config.Register("cartctl", &cfg)
	fs.StringVar(&session, "session", "", "session id; empty selects the shared default cart")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage, "\nflags:\n", fs.FlagUsages())
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	log := kit.NewLogger("cartctl", cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := cfg.ValidateStorage(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend, err := kv.Open(ctx, cfg)
	if err != nil {
		log.Fatal("open storage", zap.Error(err))
	}
	defer func() { _ = backend.Close(context.Background()) }()

	products := catalog.Store(catalog.NewSeededStore())
	if backend.DB != nil {
		products = catalog.NewPostgresStore(backend.DB)
	}

	st, err := cart.Open(ctx, backend.Store, cart.KeyFor(session), cart.WithLogger(log))
	if err != nil {
		log.Fatal("open cart", zap.Error(err))
	}

	err = execute(ctx, st, products, fs.Args(), os.Stdout)
	if errors.Is(err, errUsage) {
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func execute(ctx context.Context, st *cart.Store, products catalog.Store, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "list":
		return printCart(out, st)

	case "totals":
		t := st.Totals()
		_, err := fmt.Fprintf(out, "items: %d\nsubtotal: ₹%d\n", t.ItemCount, t.Subtotal)
		return err

	case "add":
		if len(args) < 1 || len(args) > 3 {
			return errUsage
		}
		item, err := lineFor(ctx, products, args)
		if err != nil {
			return err
		}
		if err := st.Add(ctx, item); err != nil {
			return err
		}
		return printCart(out, st)

	case "set":
		if len(args) != 2 {
			return errUsage
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("quantity %q: %w", args[1], err)
		}
		if _, ok := st.Find(args[0]); !ok {
			return fmt.Errorf("no line %q in cart", args[0])
		}
		if err := st.SetQuantity(ctx, args[0], qty); err != nil {
			return err
		}
		return printCart(out, st)

	case "remove":
		if len(args) != 1 {
			return errUsage
		}
		if err := st.Remove(ctx, args[0]); err != nil {
			return err
		}
		return printCart(out, st)

	case "clear":
		if err := st.Clear(ctx); err != nil {
			return err
		}
		return printCart(out, st)
	}

	return errUsage
}

func lineFor(ctx context.Context, products catalog.Store, args []string) (cart.LineItem, error) {
	p, ok, err := products.Get(ctx, args[0])
	if err != nil {
		return cart.LineItem{}, err
	}
	if !ok {
		return cart.LineItem{}, fmt.Errorf("unknown product %q", args[0])
	}

	qty := 1
	if len(args) == 3 {
		if qty, err = strconv.Atoi(args[2]); err != nil || qty < 1 {
			return cart.LineItem{}, fmt.Errorf("quantity %q must be a positive number", args[2])
		}
	}

	if len(args) == 1 {
		v, ok := p.QuickAddVariant()
		if !ok {
			return cart.LineItem{}, fmt.Errorf("%s needs a weight", p.Name)
		}
		return cart.LineItem{
			ID:       cart.QuickAddID(p.Name),
			Name:     p.Name,
			Type:     p.Type,
			Weight:   v.Weight,
			Price:    v.Price,
			Quantity: qty,
		}, nil
	}

	v, found := p.Variant(args[1])
	if !found {
		return cart.LineItem{}, fmt.Errorf("%s: %w %q", p.Name, catalog.ErrNoVariant, args[1])
	}
	return cart.LineItem{
		ID:       cart.ItemID(p.Name, v.Weight),
		Name:     p.Name,
		Type:     p.Type,
		Weight:   v.Weight,
		Price:    v.Price,
		Quantity: qty,
	}, nil
}

func printCart(out io.Writer, st *cart.Store) error {
	items := st.Items()
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "cart is empty")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tWEIGHT\tPRICE\tQTY\tTOTAL")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", it.ID, it.Type, it.Weight, it.Price, it.Quantity, it.Total())
	}
	t := st.Totals()
	fmt.Fprintf(tw, "\t\t\t\t%d\t%d\n", t.ItemCount, t.Subtotal)
	return tw.Flush()
}
