package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/internal/fingerprint"
	"github.com/YuldShah/uptovipnew/pkg/client"
	"github.com/YuldShah/uptovipnew/pkg/crypto"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const usage = `usage: uptovipctl [flags] <command> [args]

commands:
  fingerprint [-quality q] [-format f] [-format-id id] <url>
  invalidate [-quality q] [-format f] [-format-id id] <fingerprint|url>
  evict
  encrypt-cookies -in <cookies.txt> -out <cookies.enc>
  access <user_id>
  ban|whitelist|reset <user_id>
  channel list
  channel add [-name n] [-link l] [-added-by id] <channel_id>
  channel remove <channel_id>
  stats [-since 24h]
  version

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app carries the global flags shared by every command.
type app struct {
	server string
	apiKey string
	out    io.Writer

	// readPassphrase prompts on the terminal.
	readPassphrase func(prompt string) (string, error)
}

func (a *app) client() *client.Client {
	return client.New(a.server, a.apiKey)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("uptovipctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	a := &app{out: stdout, readPassphrase: promptPassphrase}
	fs.StringVar(&a.server, "server", envOr("UPTOVIP_URL", "http://localhost:9847"), "server base URL")
	fs.StringVar(&a.apiKey, "api-key", os.Getenv("API_KEY"), "API key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("no command given")
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "fingerprint":
		return a.fingerprint(cmdArgs)
	case "invalidate":
		return a.invalidate(ctx, cmdArgs)
	case "evict":
		return a.evict(ctx)
	case "encrypt-cookies":
		return a.encryptCookies(cmdArgs)
	case "access":
		return a.access(ctx, cmdArgs)
	case "ban", "whitelist", "reset":
		return a.setAccess(ctx, cmd, cmdArgs)
	case "channel":
		return a.channel(ctx, cmdArgs)
	case "stats":
		return a.stats(ctx, cmdArgs)
	case "version":
		fmt.Fprintf(a.out, "uptovipctl %s (built %s)\n", Version, BuildTime)
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// requestFlags parses the flags that shape a fingerprint.
func requestFlags(name string, args []string) (domain.DownloadRequest, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	quality := fs.String("quality", string(domain.DefaultQuality), "quality: high, medium, low, audio or custom")
	format := fs.String("format", string(domain.FormatVideo), "output format: video, audio or document")
	formatID := fs.String("format-id", "", "engine format ID for custom quality")
	if err := fs.Parse(args); err != nil {
		return domain.DownloadRequest{}, nil, err
	}

	q, err := domain.ParseQuality(*quality)
	if err != nil {
		return domain.DownloadRequest{}, nil, err
	}
	f, err := domain.ParseOutputFormat(*format)
	if err != nil {
		return domain.DownloadRequest{}, nil, err
	}
	return domain.DownloadRequest{Quality: q, Format: f, FormatID: *formatID}, fs.Args(), nil
}

func (a *app) fingerprint(args []string) error {
	req, rest, err := requestFlags("fingerprint", args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("fingerprint takes exactly one URL")
	}
	req.SourceURL = rest[0]

	normalized, err := fingerprint.Normalize(req.SourceURL)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\n", fingerprint.Build(req), normalized)
	return nil
}

func (a *app) invalidate(ctx context.Context, args []string) error {
	req, rest, err := requestFlags("invalidate", args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("invalidate takes a fingerprint or a URL")
	}

	fp := domain.Fingerprint(rest[0])
	if !fp.Valid() {
		req.SourceURL = rest[0]
		fp = fingerprint.Build(req)
	}

	if err := a.client().Invalidate(ctx, fp); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "invalidated %s\n", fp)
	return nil
}

func (a *app) evict(ctx context.Context) error {
	n, err := a.client().Evict(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "removed %d expired entries\n", n)
	return nil
}

func (a *app) encryptCookies(args []string) error {
	fs := flag.NewFlagSet("encrypt-cookies", flag.ContinueOnError)
	in := fs.String("in", "", "plaintext Netscape cookie file")
	out := fs.String("out", "", "encrypted output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return errors.New("-in and -out are required")
	}

	passphrase := os.Getenv("COOKIE_PASSPHRASE")
	if passphrase == "" {
		var err error
		passphrase, err = a.readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := a.readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if confirm != passphrase {
			return errors.New("passphrases do not match")
		}
	}
	if passphrase == "" {
		return errors.New("empty passphrase")
	}

	if err := crypto.EncryptFile(*in, *out, passphrase); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %s\n", *out)
	return nil
}

func promptPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; set COOKIE_PASSPHRASE")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(b), nil
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}

func (a *app) access(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("access takes a user id")
	}
	userID, err := parseID("user", args[0])
	if err != nil {
		return err
	}

	status, err := a.client().GetAccess(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d\t%s\n", userID, status)
	return nil
}

func (a *app) setAccess(ctx context.Context, cmd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%s takes a user id", cmd)
	}
	userID, err := parseID("user", args[0])
	if err != nil {
		return err
	}
	status, err := domain.ParseAccessStatus(cmd)
	if err != nil {
		return err
	}

	if err := a.client().SetAccess(ctx, userID, status); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d\t%s\n", userID, status)
	return nil
}

func (a *app) channel(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("channel needs a subcommand: list, add or remove")
	}

	c := a.client()
	switch args[0] {
	case "list":
		channels, err := c.Channels(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tLINK\tACTIVE")
		for _, ch := range channels {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", ch.ChannelID, ch.Name, ch.Link, ch.IsActive)
		}
		return tw.Flush()

	case "add":
		fs := flag.NewFlagSet("channel add", flag.ContinueOnError)
		name := fs.String("name", "", "display name")
		link := fs.String("link", "", "invite link")
		addedBy := fs.Int64("added-by", 0, "admin user id")

		// Channel IDs are negative and would otherwise parse as flags.
		flagArgs := args[1:]
		if len(flagArgs) == 0 {
			return errors.New("channel add takes a channel id")
		}
		idArg := flagArgs[len(flagArgs)-1]
		if err := fs.Parse(flagArgs[:len(flagArgs)-1]); err != nil {
			return err
		}
		if fs.NArg() != 0 {
			return errors.New("channel add takes a single channel id after the flags")
		}
		id, err := parseID("channel", idArg)
		if err != nil {
			return err
		}
		added, err := c.AddChannel(ctx, domain.Channel{
			ChannelID: id,
			Name:      *name,
			Link:      *link,
			AddedBy:   *addedBy,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "added channel %d\n", added.ChannelID)
		return nil

	case "remove":
		if len(args) != 2 {
			return errors.New("channel remove takes a channel id")
		}
		id, err := parseID("channel", args[1])
		if err != nil {
			return err
		}
		if err := c.RemoveChannel(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "removed channel %d\n", id)
		return nil
	}
	return fmt.Errorf("unknown channel subcommand %q", args[0])
}

func (a *app) stats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	since := fs.Duration("since", 24*time.Hour, "window to summarize")
	if err := fs.Parse(args); err != nil {
		return err
	}

	summary, err := a.client().StatsSummary(ctx, *since)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tTOTAL\tSUCCEEDED\tBYTES")
	for _, p := range summary.Platforms {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", p.Platform, p.Total, p.Succeeded, p.Bytes)
	}
	return tw.Flush()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
