package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rexliu/motoshop/pkg/api"
	"github.com/rexliu/motoshop/pkg/config"
	"github.com/rexliu/motoshop/pkg/ipc"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"init", "Write a default config.toml", initCommand},
	{"ping", "Check that the server answers", pingCommand},
	{"login", "Log in and print a session token", loginCommand},
	{"products", "List or search products", productsCommand},
	{"orders", "List orders, optionally for one customer", ordersCommand},
	{"order", "Show one order with its items", orderCommand},
	{"create-order", "Place an order", createOrderCommand},
	{"set-status", "Change an order's status", setStatusCommand},
	{"inventory", "Show the stock ledger", inventoryCommand},
	{"adjust", "Move stock in or out manually", adjustCommand},
	{"low-stock", "List products below a stock threshold", lowStockCommand},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, c := range commands {
		if c.name != os.Args[1] {
			continue
		}
		if err := c.run(ctx, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "%s error: %v\n", c.name, err)
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
	usage()
	os.Exit(1)
}

func usage() {
	fmt.Println("Usage: shopctl <command> [options]")
	fmt.Println("Commands:")
	for _, c := range commands {
		fmt.Printf("  %-13s %s\n", c.name, c.usage)
	}
	fmt.Println("Every command accepts -config and -addr; -token defaults to $" + config.EnvPrefix + "_TOKEN.")
}

// conn holds the flags shared by every networked command.
type conn struct {
	configPath string
	addr       string
	token      string
	verbose    bool
}

func (c *conn) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to config.toml")
	fs.StringVar(&c.addr, "addr", "", "Override client.addr")
	fs.StringVar(&c.token, "token", os.Getenv(config.EnvPrefix+"_TOKEN"), "Session token")
	fs.BoolVar(&c.verbose, "v", false, "Log connection events")
}

// dial builds the typed client. The caller must call the returned close func.
func (c *conn) dial(ctx context.Context) (*api.Client, func(), error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	addr := cfg.Client.Addr
	if c.addr != "" {
		addr = c.addr
	}
	logger := zap.NewNop()
	if c.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, nil, err
		}
	}
	raw := ipc.NewClient(addr,
		ipc.WithReadTimeout(cfg.Client.ReadTimeout),
		ipc.WithKeepAlive(cfg.Client.KeepAlive),
		ipc.WithReconnectDelay(cfg.Client.ReconnectDelay),
		ipc.WithClientLogger(logger.Sugar()))
	if err := raw.Connect(ctx); err != nil {
		return nil, nil, err
	}
	client := api.NewClient(raw)
	client.SetToken(c.token)
	return client, func() {
		raw.Disconnect()
		_ = logger.Sync()
	}, nil
}
