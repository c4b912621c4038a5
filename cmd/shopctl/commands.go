package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/rexliu/motoshop/pkg/config"
	"github.com/rexliu/motoshop/pkg/core"
)

func initCommand(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.toml", "Where to write the config")
	name := fs.String("name", "default", "Profile name")
	force := fs.Bool("force", false, "Overwrite an existing file")
	_ = fs.Parse(args)

	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("config already exists at %s (use -force to overwrite)", *path)
	}
	cfg := config.Default()
	cfg.ProfileName = *name
	if err := config.Save(*path, cfg); err != nil {
		return err
	}
	fmt.Printf("initialized profile %s at %s\n", cfg.ProfileName, *path)
	return nil
}

func pingCommand(ctx context.Context, args []string) error {
	var c conn
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	c.bind(fs)
	_ = fs.Parse(args)

	client, done, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer done()
	if err := client.Ping(ctx); err != nil {
		return err
	}
	fmt.Println("server responded: pong")
	return nil
}

func loginCommand(ctx context.Context, args []string) error {
	var c conn
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	c.bind(fs)
	username := fs.String("user", "", "Username")
	password := fs.String("password", os.Getenv(config.EnvPrefix+"_PASSWORD"), "Password")
	_ = fs.Parse(args)

	client, done, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer done()
	res, err := client.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "logged in as %s (%s), session expires %s\n",
		res.User.Username, res.User.Role, res.ExpiresAt.Local().Format("2006-01-02 15:04"))
	fmt.Printf("export %s_TOKEN=%s\n", config.EnvPrefix, res.Token)
	return nil
}

func productsCommand(ctx context.Context, args []string) error {
	var c conn
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	c.bind(fs)
	keyword := fs.String("search", "", "Match name, brand or model")
	category := fs.Int64("category", 0, "Only this category id")
	_ = fs.Parse(args)

	client, done, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer done()
	var products []core.Product
	switch {
	case *category > 0:
		products, err = client.ProductsByCategory(ctx, *category)
	case *keyword != "":
		products, err = client.SearchProducts(ctx, *keyword)
	default:
		products, err = client.Products(ctx)
	}
	if err != nil {
		return err
	}
	printProducts(products)
	return nil
}

func ordersCommand(ctx context.Context, args []string) error {
	var c conn
	fs := flag.NewFlagSet("orders", flag.ExitOnError)
	c.bind(fs)
	customer := fs.Int64("customer", 0, "Only this customer id")
	_ = fs.Parse(args)

	client, done, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer done()
	var orders []core.Order
	if *customer > 0 {
		orders, err = client.OrdersByCustomer(ctx, *customer)
	} else {
		orders, err = client.Orders(ctx)
	}
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tCUSTOMER\tFINAL\tSTATUS\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", o.ID, o.Code, o.CustomerName,
			o.FinalAmount.StringFixed(2), o.Status, o.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func orderCommand(ctx context.Context, args []string) error {
	var c conn
	fs := flag.NewFlagSet("order", flag.ExitOnError)
	c.bind(fs)
	id := fs.Int64("id", 0, "Order id")
	_ = fs.Parse(args)

	client, done, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer done()
	o, err := client.Order(ctx, *id)
	if err != nil {
		return err
	}
	printOrder(o)
	return nil
}

// itemsFlag collects -item productID:quantity[:unitPrice].
type itemsFlag []core.LineItem

func (f *itemsFlag) String() string { return fmt.Sprint(len(*f), " items") }

func (f *itemsFlag) Set(s string) error {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("want productID:quantity[:unitPrice], got %q", s)
	}
	pid, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	qty, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	item := core.LineItem{ProductID: pid, Quantity: qty}
	if len(parts) == 3 {
		if item.UnitPrice, err = decimal.NewFromString(parts[2]); err != nil {
			return fmt.Errorf("unit price: %w", err)
		}
	}
	*f = append(*f, item)
	return nil
}

func createOrderCommand(ctx context.Context, args []string) error {
	var c conn
	var items itemsFlag
	fs := flag.NewFlagSet("create-order", flag.ExitOnError)
	c.bind(fs)
	fs.Var(&items, "item", "Line item productID:quantity[:unitPrice]; repeatable")
	customer := fs.Int64("customer", 0, "Registered customer id")
	walkIn := fs.String("walk-in", "", "Walk-in customer name")
	phone := fs.String("phone", "", "Walk-in customer phone")
	discount := fs.String("discount", "0", "Discount amount")
	payment := fs.String("payment", string(core.PayCash), "CASH, CARD or TRANSFER")
	note := fs.String("note", "", "Order note")
	_ = fs.Parse(args)

	disc, err := decimal.NewFromString(*discount)
	if err != nil {
		return fmt.Errorf("discount: %w", err)
	}
	client, done, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer done()

	// Lines without a price sell at the current list price.
	for i := range items {
		if !items[i].UnitPrice.IsZero() {
			continue
		}
		p, err := client.Product(ctx, items[i].ProductID)
		if err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
		items[i].UnitPrice = p.Price
	}
	o, err := client.CreateOrder(ctx, core.OrderDraft{
		CustomerID:    *customer,
		WalkInName:    *walkIn,
		WalkInPhone:   *phone,
		Items:         items,
		Discount:      disc,
		PaymentMethod: core.PaymentMethod(*payment),
		Note:          *note,
	})
	if err != nil {
		return err
	}
	printOrder(o)
	return nil
}

func setStatusCommand(ctx context.Context, args []string) error {
	var c conn
	fs := flag.NewFlagSet("set-status", flag.ExitOnError)
	c.bind(fs)
	id := fs.Int64("id", 0, "Order id")
	status := fs.String("status", "", "PENDING, COMPLETED or CANCELLED")
	_ = fs.Parse(args)

	st, err := core.ParseOrderStatus(*status)
	if err != nil {
		return err
	}
	client, done, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer done()
	o, err := client.UpdateOrderStatus(ctx, *id, st)
	if err != nil {
		return err
	}
	fmt.Printf("order %d (%s) is now %s\n", o.ID, o.Code, o.Status)
	return nil
}

func inventoryCommand(ctx context.Context, args []string) error {
	var c conn
	fs := flag.NewFlagSet("inventory", flag.ExitOnError)
	c.bind(fs)
	_ = fs.Parse(args)

	client, done, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer done()
	recs, err := client.Inventory(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tNAME\tBRAND\tMODEL\tIN\tOUT\tCURRENT")
	for _, r := range recs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ProductID, r.ProductName, r.Brand, r.Model, r.QuantityIn, r.QuantityOut, r.Current)
	}
	return w.Flush()
}

func adjustCommand(ctx context.Context, args []string) error {
	var c conn
	fs := flag.NewFlagSet("adjust", flag.ExitOnError)
	c.bind(fs)
	product := fs.Int64("product", 0, "Product id")
	qty := fs.Int64("qty", 0, "Quantity to move")
	dir := fs.String("dir", string(core.StockIn), "IN or OUT")
	_ = fs.Parse(args)

	d, err := core.ParseDirection(*dir)
	if err != nil {
		return err
	}
	client, done, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer done()
	rec, err := client.AdjustInventory(ctx, *product, *qty, d)
	if err != nil {
		return err
	}
	fmt.Printf("product %d: in=%d out=%d current=%d\n", rec.ProductID, rec.QuantityIn, rec.QuantityOut, rec.Current)
	return nil
}

func lowStockCommand(ctx context.Context, args []string) error {
	var c conn
	fs := flag.NewFlagSet("low-stock", flag.ExitOnError)
	c.bind(fs)
	threshold := fs.Int64("threshold", 0, "Stock threshold; 0 uses the server setting")
	_ = fs.Parse(args)

	client, done, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer done()
	products, err := client.LowStock(ctx, *threshold)
	if err != nil {
		return err
	}
	printProducts(products)
	return nil
}

func printProducts(products []core.Product) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBRAND\tMODEL\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			p.ID, p.Name, p.Brand, p.Model, p.CategoryName, p.Price.StringFixed(2), p.Stock)
	}
	_ = w.Flush()
}

func printOrder(o core.Order) {
	fmt.Printf("order %d  %s  %s\n", o.ID, o.Code, o.Status)
	fmt.Printf("customer: %s  payment: %s\n", o.CustomerName, o.PaymentMethod)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tNAME\tQTY\tUNIT\tTOTAL")
	for _, it := range o.Items {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			it.ProductID, it.ProductName, it.Quantity, it.UnitPrice.StringFixed(2), it.TotalPrice.StringFixed(2))
	}
	_ = w.Flush()
	fmt.Printf("total %s  discount %s  final %s\n",
		o.TotalAmount.StringFixed(2), o.Discount.StringFixed(2), o.FinalAmount.StringFixed(2))
}
