// Command vcpingctl inspects and edits voice-activity subscriptions in the
// configured store without going through the chat command.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/vogiaan1904/vcping/config"
	"github.com/vogiaan1904/vcping/internal/domain"
	"github.com/vogiaan1904/vcping/internal/infra/store"
	"github.com/vogiaan1904/vcping/internal/subscription"
	pkgLog "github.com/vogiaan1904/vcping/pkg/logger"
)

const usage = `usage: vcpingctl <command> [flags]

commands:
  list    -community ID                     list subscribers of a community
  add     -community ID -user ID [-leave]   subscribe a user (or update the leave flag)
  remove  -community ID -user ID            unsubscribe a user
  export                                    write every subscription as JSON to stdout
  import  [-file PATH]                      upsert subscriptions from a JSON export (stdin by default)
`

var errUsage = errors.New("invalid usage")

// record is the export format. A missing notify_on_leave imports as true.
type record struct {
	UserID        string    `json:"user_id"`
	CommunityID   string    `json:"community_id"`
	NotifyOnLeave *bool     `json:"notify_on_leave,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    "warn",
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	subStore, closeStore, err := store.Open(ctx, cfg, l)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open subscription store: %v\n", err)
		os.Exit(1)
	}

	err = run(ctx, os.Args[1:], subscription.NewService(subStore, l), os.Stdin, os.Stdout)
	closeStore()

	if errors.Is(err, errUsage) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, svc subscription.Service, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	community := fs.String("community", "", "community (guild) id")
	user := fs.String("user", "", "user id")
	leave := fs.Bool("leave", true, "also notify when the voice chat ends")
	file := fs.String("file", "", "JSON export to import (default stdin)")

	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	switch args[0] {
	case "export":
		return export(ctx, svc, out)
	case "import":
		return importFrom(ctx, svc, *file, in, out)
	}

	if *community == "" {
		return fmt.Errorf("%w: -community is required", errUsage)
	}

	switch args[0] {
	case "list":
		subs, err := svc.ListSubscribers(ctx, *community)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tNOTIFY ON LEAVE\tUPDATED")
		for _, s := range subs {
			updated := "-"
			if !s.UpdatedAt.IsZero() {
				updated = s.UpdatedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%t\t%s\n", s.UserID, s.NotifyOnLeave, updated)
		}
		return w.Flush()

	case "add":
		if *user == "" {
			return fmt.Errorf("%w: -user is required", errUsage)
		}
		sub, err := svc.Upsert(ctx, *community, *user, *leave)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "subscribed %s to %s (notify on leave: %t)\n", sub.UserID, sub.CommunityID, sub.NotifyOnLeave)
		return nil

	case "remove":
		if *user == "" {
			return fmt.Errorf("%w: -user is required", errUsage)
		}
		if err := svc.Delete(ctx, *community, *user); err != nil {
			return err
		}
		fmt.Fprintf(out, "unsubscribed %s from %s\n", *user, *community)
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func export(ctx context.Context, svc subscription.Service, out io.Writer) error {
	subs, err := svc.ListAll(ctx)
	if err != nil {
		return err
	}

	recs := make([]record, 0, len(subs))
	for _, s := range subs {
		recs = append(recs, record{
			UserID:        s.UserID,
			CommunityID:   s.CommunityID,
			NotifyOnLeave: &s.NotifyOnLeave,
			UpdatedAt:     s.UpdatedAt,
		})
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

func importFrom(ctx context.Context, svc subscription.Service, path string, in io.Reader, out io.Writer) error {
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var recs []record
	if err := json.NewDecoder(in).Decode(&recs); err != nil {
		return fmt.Errorf("failed to parse export: %w", err)
	}

	subs := make([]domain.Subscription, 0, len(recs))
	for _, r := range recs {
		notifyOnLeave := true
		if r.NotifyOnLeave != nil {
			notifyOnLeave = *r.NotifyOnLeave
		}
		subs = append(subs, domain.Subscription{
			UserID:        r.UserID,
			CommunityID:   r.CommunityID,
			NotifyOnLeave: notifyOnLeave,
			UpdatedAt:     r.UpdatedAt,
		})
	}

	n, err := svc.Import(ctx, subs)
	fmt.Fprintf(out, "imported %d of %d subscriptions\n", n, len(subs))
	return err
}
