package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/courier-im/courier/internal/app"
	"github.com/courier-im/courier/internal/config"
	"github.com/courier-im/courier/internal/home"
	"github.com/courier-im/courier/internal/store"
	intsync "github.com/courier-im/courier/internal/sync"
)

func main() {
	cliApp := &cli.App{
		Name:  "courier",
		Usage: "Reconcile a remote messaging provider into the local inbox",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to config file",
				Value: home.ConfigPath(),
			},
		},
		Commands: []*cli.Command{
			syncCommand,
			backfillCommand,
			inboxCommand,
			searchCommand,
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runtime holds what commands pull out of the fx graph.
type runtime struct {
	engine *intsync.Engine
	db     *store.DB
	cfg    *config.Config
}

// withApp builds the application graph, runs fn, and tears the graph down
// again. Each CLI invocation is one unit of work; there is no daemon.
func withApp(c *cli.Context, fn func(ctx context.Context, rt *runtime) error) error {
	rt := &runtime{}
	fxApp := fx.New(
		fx.NopLogger,
		app.Module(app.Params{ConfigPath: c.String("config")}),
		fx.Populate(&rt.engine, &rt.db, &rt.cfg),
	)

	startCtx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}
	runErr := fn(c.Context, rt)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

var syncCommand = &cli.Command{
	Name:      "sync",
	Usage:     "Sync a single conversation against the remote provider",
	ArgsUsage: "<conversation-id>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Usage: "max records to keep (default from config)"},
		&cli.BoolFlag{Name: "media", Usage: "resolve media URIs for messages that declare attachments"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("usage: courier sync <conversation-id>")
		}
		return withApp(c, func(ctx context.Context, rt *runtime) error {
			limit := c.Int("limit")
			if limit <= 0 {
				limit = rt.cfg.Sync.ConversationLimit
			}
			res, err := rt.engine.SyncConversation(ctx, c.Args().First(), intsync.Options{
				Limit:        limit,
				IncludeMedia: c.Bool("media"),
			})
			if err != nil {
				return err
			}
			fmt.Printf("fetched=%d inserted=%d updated=%d\n", res.Fetched, res.Inserted, res.Updated)
			return nil
		})
	},
}

var backfillCommand = &cli.Command{
	Name:  "backfill",
	Usage: "Discover counterparties and sync the whole account",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Usage: "max records to fetch (default from config)"},
		&cli.BoolFlag{Name: "media", Usage: "resolve media URIs for messages that declare attachments"},
		&cli.StringFlag{Name: "since", Usage: "only fetch messages sent on or after this date (YYYY-MM-DD)"},
	},
	Action: func(c *cli.Context) error {
		var since time.Time
		if s := c.String("since"); s != "" {
			var err error
			since, err = time.Parse("2006-01-02", s)
			if err != nil {
				return fmt.Errorf("invalid --since date %q: %w", s, err)
			}
		}
		return withApp(c, func(ctx context.Context, rt *runtime) error {
			limit := c.Int("limit")
			if limit <= 0 {
				limit = rt.cfg.Sync.BulkLimit
			}
			res, err := rt.engine.BulkSync(ctx, intsync.BulkOptions{
				Limit:        limit,
				IncludeMedia: c.Bool("media"),
				DateAfter:    since,
			})
			if err != nil {
				return err
			}
			fmt.Printf("fetched=%d contacts=%d conversations=%d inserted=%d updated=%d\n",
				res.TotalFetched, res.ContactsCreated, res.ConversationsCreated,
				res.MessagesInserted, res.MessagesUpdated)
			for _, e := range res.Errors {
				fmt.Fprintf(os.Stderr, "warning: %s\n", e)
			}
			return nil
		})
	},
}

var inboxCommand = &cli.Command{
	Name:  "inbox",
	Usage: "List conversations, newest activity first",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: 50},
	},
	Action: func(c *cli.Context) error {
		return withApp(c, func(_ context.Context, rt *runtime) error {
			convs, err := rt.db.ListConversations(c.Int("limit"), 0)
			if err != nil {
				return err
			}
			for _, cv := range convs {
				at := ""
				if cv.LastMessageAt > 0 {
					at = time.UnixMilli(cv.LastMessageAt).Format("2006-01-02 15:04")
				}
				fmt.Printf("%s  %-10s %-24s %s  %s\n", cv.ID, cv.ChannelType, cv.ContactName, at, cv.LastMessage)
			}
			return nil
		})
	},
}

var searchCommand = &cli.Command{
	Name:      "search",
	Usage:     "Full-text search message bodies",
	ArgsUsage: "<query>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "conversation", Usage: "restrict to one conversation"},
		&cli.IntFlag{Name: "limit", Value: 20},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("usage: courier search <query>")
		}
		return withApp(c, func(_ context.Context, rt *runtime) error {
			results, err := rt.db.SearchMessages(c.Args().First(), c.String("conversation"), c.Int("limit"))
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%s  %-8s %s\n", r.Message.ConversationID, r.Message.Direction, r.Snippet)
			}
			return nil
		})
	},
}
