package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/tidwall/match"

	"github.com/dshills/appshim/internal/appmodel/store"
	"github.com/dshills/appshim/internal/storage"
	"github.com/dshills/appshim/internal/timer"
)

type command struct {
	name        string
	usage       string
	summary     string
	needsConfig bool
	run         func(c *cli, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"get", "get KEY", "Print the value stored under KEY", true, cmdGet},
		{"set", "set [-type KIND] KEY VALUE", "Store VALUE under KEY (kind defaults to string)", true, cmdSet},
		{"rm", "rm KEY", "Remove KEY", true, cmdRemove},
		{"ls", "ls [PATTERN]", "List entries, optionally filtered by a glob pattern", true, cmdList},
		{"count", "count", "Print the number of keys", true, cmdCount},
		{"clear", "clear", "Remove every key", true, cmdClear},
		{"watch", "watch [-for DURATION]", "Print changes until interrupted", true, cmdWatch},
		{"container", "container [-existing | -delete] NAME", "Open, create or delete a child container", true, cmdContainer},
		{"details", "details [-print]", "Open the app's store page", true, cmdDetails},
		{"review", "review [-print]", "Open the app's store review page", true, cmdReview},
		{"version", "version", "Show version information", false, cmdVersion},
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usageError(usage string) error {
	return fmt.Errorf("%w: appshim %s", errUsage, usage)
}

func cmdGet(c *cli, args []string) error {
	if len(args) != 1 {
		return usageError("get KEY")
	}
	ct, err := c.container()
	if err != nil {
		return err
	}
	v, ok, err := ct.Values().Lookup(args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", storage.ErrKeyNotFound, args[0])
	}
	if c.tty {
		fmt.Fprintf(c.stdout, "%s (%s)\n", v, v.Kind())
		return nil
	}
	fmt.Fprintln(c.stdout, v)
	return nil
}

func cmdSet(c *cli, args []string) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	kindName := fs.String("type", "string", "Value kind (bool, int16, int32, int64, uint16, uint32, uint64, float32, float64, string, datetime, guid, bytes, null)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 2 {
		return usageError("set [-type KIND] KEY VALUE")
	}

	kind, err := storage.ParseKind(*kindName)
	if err != nil {
		return err
	}
	v, err := storage.ParseValue(kind, fs.Arg(1))
	if err != nil {
		return err
	}

	ct, err := c.container()
	if err != nil {
		return err
	}
	return ct.Values().Set(fs.Arg(0), v)
}

func cmdRemove(c *cli, args []string) error {
	if len(args) != 1 {
		return usageError("rm KEY")
	}
	ct, err := c.container()
	if err != nil {
		return err
	}
	removed, err := ct.Values().Remove(args[0])
	if err != nil {
		return err
	}
	if !removed {
		c.logger.Info("key %q was not present", args[0])
	}
	return nil
}

func cmdList(c *cli, args []string) error {
	if len(args) > 1 {
		return usageError("ls [PATTERN]")
	}
	pattern := "*"
	if len(args) == 1 {
		pattern = args[0]
	}

	ct, err := c.container()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	if c.tty {
		fmt.Fprintln(tw, "KEY\tTYPE\tVALUE")
	}
	err = ct.Values().Range(func(key string, v storage.Value) bool {
		if match.Match(key, pattern) {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", key, v.Kind(), v)
		}
		return true
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}

func cmdCount(c *cli, args []string) error {
	if len(args) != 0 {
		return usageError("count")
	}
	ct, err := c.container()
	if err != nil {
		return err
	}
	n, err := ct.Values().Count()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, n)
	return nil
}

func cmdClear(c *cli, args []string) error {
	if len(args) != 0 {
		return usageError("clear")
	}
	ct, err := c.container()
	if err != nil {
		return err
	}
	return ct.Values().Clear()
}

// cmdWatch prints changes from a dispatcher loop on the main goroutine.
// Observer callbacks arrive on backend goroutines and are queued to it.
func cmdWatch(c *cli, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	limit := fs.Duration("for", 0, "Stop after this long (0 waits for an interrupt)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 0 || *limit < 0 {
		return usageError("watch [-for DURATION]")
	}

	ct, err := c.container()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := timer.NewChannelDispatcher(64)
	observer := storage.ObserverFunc(func(ch storage.MapChange) {
		loop.Dispatch(func() {
			if ch.Key == "" {
				fmt.Fprintf(c.stdout, "%s\t%s\n", ch.Type, ch.Source)
				return
			}
			fmt.Fprintf(c.stdout, "%s\t%s\t%s\n", ch.Type, ch.Key, ch.Source)
		})
	})

	values := ct.Values()
	if err := values.AddObserver(observer); err != nil {
		return err
	}
	defer func() {
		if err := values.RemoveObserver(observer); err != nil {
			c.logger.Warn("removing observer: %v", err)
		}
	}()

	if *limit > 0 {
		deadline := timer.New(timer.WithDispatcher(loop), timer.WithLogger(c.logger))
		if err := deadline.SetInterval(*limit); err != nil {
			return err
		}
		deadline.OnTick(func(time.Time) {
			deadline.Stop()
			cancel()
		})
		deadline.Start()
		defer deadline.Stop()
	}

	c.logger.Info("watching %s settings", ct.Locality())
	err = loop.Run(ctx)
	if n := loop.Dropped(); n > 0 {
		c.logger.Warn("dropped %d change notifications while output was busy", n)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func cmdContainer(c *cli, args []string) error {
	fs := flag.NewFlagSet("container", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	existing := fs.Bool("existing", false, "Fail if the container does not exist")
	remove := fs.Bool("delete", false, "Delete the container and everything below it")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 || (*existing && *remove) {
		return usageError("container [-existing | -delete] NAME")
	}

	parent, err := c.container()
	if err != nil {
		return err
	}

	if *remove {
		existed, err := parent.DeleteContainer(fs.Arg(0))
		if err != nil {
			return err
		}
		if !existed {
			c.logger.Info("container %q was not present", fs.Arg(0))
		}
		return nil
	}

	disposition := storage.DispositionAlways
	if *existing {
		disposition = storage.DispositionExisting
	}
	child, err := parent.CreateContainer(fs.Arg(0), disposition)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s\t%s\t%s\n", child.Name(), child.Locality(), child.Backend().Name())
	return nil
}

func cmdDetails(c *cli, args []string) error {
	return storeCommand(c, "details", args, (*store.CurrentApp).DetailsURI, (*store.CurrentApp).RequestDetails)
}

func cmdReview(c *cli, args []string) error {
	return storeCommand(c, "review", args, (*store.CurrentApp).ReviewURI, (*store.CurrentApp).RequestReview)
}

func storeCommand(c *cli, name string, args []string,
	uri func(*store.CurrentApp) string,
	request func(*store.CurrentApp, context.Context) (bool, error),
) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	printOnly := fs.Bool("print", false, "Print the link instead of opening it")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 0 {
		return usageError(name + " [-print]")
	}

	app := store.New(c.cfg, store.WithLogger(c.logger))
	link := uri(app)
	if link == "" {
		return fmt.Errorf("%w: no store on platform %q", storage.ErrOperationNotSupported, c.cfg.Platform)
	}
	if *printOnly {
		fmt.Fprintln(c.stdout, link)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := request(app, ctx)
	return err
}

func cmdVersion(c *cli, _ []string) error {
	fmt.Fprintf(c.stdout, "appshim %s\n", version)
	fmt.Fprintf(c.stdout, "Commit: %s\n", commit)
	fmt.Fprintf(c.stdout, "Built: %s\n", date)
	return nil
}
