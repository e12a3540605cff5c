// Package cli implements the chatctl command line: account commands go
// straight to the API, chat commands go through chatsync so they keep
// working while the server is down.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-chat-vault/internal/chatsync"
	"go-chat-vault/internal/client/apiclient"
	"go-chat-vault/internal/localcache"
	"go-chat-vault/internal/model"
	"go-chat-vault/internal/token"
)

const usage = `usage: chatctl [global flags] <command> [flags]

commands:
  register  -name -email -password
  login     -email -password
  me
  forgot    -email
  reset     -token -password
  passwd    -current -new
  save      -file <thread.json | ->
  list
  delete    -chat <id>
  sync

global flags:
`

type App struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	client *apiclient.Client
	cache  localcache.Cache
}

type globalOptions struct {
	server string
	token  string
	cache  string
}

// Run executes one command and returns the process exit code.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	opts := globalOptions{}
	fs := flag.NewFlagSet("chatctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.server, "server", envOr("CHATCTL_SERVER", "http://localhost:8080"), "chat vault server URL")
	fs.StringVar(&opts.token, "token", os.Getenv("CHATCTL_TOKEN"), "session token")
	fs.StringVar(&opts.cache, "cache", envOr("CHATCTL_CACHE", defaultCacheDir()), `local cache: "memory", a directory, or a redis:// URL`)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	client, err := apiclient.New(opts.server, apiclient.WithToken(opts.token))
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}

	cache, closeCache, err := localcache.Open(ctx, opts.cache)
	if err != nil {
		fmt.Fprintln(stderr, "error: open cache:", err)
		return 1
	}
	defer func() { _ = closeCache() }()

	app := &App{stdin: stdin, stdout: stdout, stderr: stderr, client: client, cache: cache}

	if err := app.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func (a *App) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "me":
		return a.me(ctx)
	case "forgot":
		return a.forgot(ctx, args)
	case "reset":
		return a.reset(ctx, args)
	case "passwd":
		return a.passwd(ctx, args)
	case "save":
		return a.save(ctx, args)
	case "list":
		return a.list(ctx)
	case "delete":
		return a.delete(ctx, args)
	case "sync":
		return a.sync(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *App) register(ctx context.Context, args []string) error {
	fs := a.flagSet("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := a.client.Register(ctx, model.RegisterRequest{Name: *name, Email: *email, Password: *password})
	if err != nil {
		return err
	}
	return a.print(result)
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := a.flagSet("login")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	return a.print(result)
}

func (a *App) me(ctx context.Context) error {
	user, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	return a.print(user)
}

func (a *App) forgot(ctx context.Context, args []string) error {
	fs := a.flagSet("forgot")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reset, err := a.client.ForgotPassword(ctx, *email)
	if err != nil {
		return err
	}
	return a.print(reset)
}

func (a *App) reset(ctx context.Context, args []string) error {
	fs := a.flagSet("reset")
	resetToken := fs.String("token", "", "reset token from the forgot command")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := a.client.ResetPassword(ctx, *resetToken, *password)
	if err != nil {
		return err
	}
	return a.print(result)
}

func (a *App) passwd(ctx context.Context, args []string) error {
	fs := a.flagSet("passwd")
	current := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.client.ChangePassword(ctx, *current, *next); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "password changed")
	return nil
}

func (a *App) save(ctx context.Context, args []string) error {
	fs := a.flagSet("save")
	file := fs.String("file", "-", `thread JSON file, "-" for stdin`)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ownerID, err := a.ownerID()
	if err != nil {
		return err
	}

	var src io.Reader = a.stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("open thread file: %w", err)
		}
		defer f.Close()
		src = f
	}

	var thread model.ChatThread
	if err := json.NewDecoder(src).Decode(&thread); err != nil {
		return fmt.Errorf("decode thread: %w", err)
	}
	thread.OwnerID = ownerID
	if thread.UpdatedAt.IsZero() {
		thread.UpdatedAt = time.Now().UTC()
	}

	result, err := a.coordinator().SaveThread(ctx, thread)
	if err != nil {
		return err
	}
	if result.SavedLocally {
		fmt.Fprintln(a.stderr, "server unreachable, saved locally; run `chatctl sync` later")
	}
	return a.print(result.Thread)
}

func (a *App) list(ctx context.Context) error {
	ownerID, err := a.ownerID()
	if err != nil {
		return err
	}

	threads, source, err := a.coordinator().ListThreads(ctx, ownerID)
	if err != nil {
		return err
	}
	if source == chatsync.SourceLocal {
		fmt.Fprintln(a.stderr, "server unreachable, showing local cache")
	}
	return a.print(model.ChatList{Chats: threads})
}

func (a *App) delete(ctx context.Context, args []string) error {
	fs := a.flagSet("delete")
	chatID := fs.String("chat", "", "chat id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*chatID) == "" {
		return errors.New("-chat is required")
	}

	ownerID, err := a.ownerID()
	if err != nil {
		return err
	}

	source := a.coordinator().DeleteThread(ctx, ownerID, *chatID)
	fmt.Fprintf(a.stdout, "deleted %s (%s)\n", *chatID, source)
	return nil
}

func (a *App) sync(ctx context.Context) error {
	ownerID, err := a.ownerID()
	if err != nil {
		return err
	}

	report, err := a.coordinator().Reconcile(ctx, ownerID)
	if err != nil {
		return err
	}
	if len(report.Dropped) > 0 {
		fmt.Fprintf(a.stderr, "warning: %d thread(s) failed to sync and were removed from the local cache\n", len(report.Dropped))
	}
	return a.print(report)
}

func (a *App) coordinator() *chatsync.Coordinator {
	return chatsync.New(a.client, a.cache)
}

// ownerID keys the local cache. The token is only decoded here; the server
// still verifies it on every request.
func (a *App) ownerID() (string, error) {
	tok := a.client.Token()
	if tok == "" {
		return "", errors.New("not logged in: pass -token or set CHATCTL_TOKEN")
	}
	subject, err := token.SubjectUnverified(tok)
	if err != nil {
		return "", fmt.Errorf("read token subject: %w", err)
	}
	return subject, nil
}

func (a *App) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "memory"
	}
	return filepath.Join(dir, "chatctl")
}
