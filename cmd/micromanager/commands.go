package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/micromanager/authclient"
	"github.com/jrsteele09/micromanager/internal/config"
	"github.com/jrsteele09/micromanager/micromanager"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const passwordEnvVar = "MICROMANAGER_PASSWORD"

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"login":    {"login --email EMAIL [--password PASSWORD]", cmdLogin},
		"register": {"register --first-name NAME --email EMAIL [--password PASSWORD]", cmdRegister},
		"logout":   {"logout", cmdLogout},
		"whoami":   {"whoami", cmdWhoami},
		"list":     {"list", cmdList},
		"create":   {"create --name NAME --file app.py [--type TYPE] [--description TEXT]", cmdCreate},
		"edit":     {"edit --name NAME --file app.py [--type TYPE] [--description TEXT]", cmdEdit},
		"start":    {"start NAME", cmdStart},
		"stop":     {"stop NAME", cmdStop},
		"toggle":   {"toggle NAME", cmdToggle},
		"delete":   {"delete NAME", cmdDelete},
		"summary":  {"summary", cmdSummary},
		"shell":    {"shell [--metrics-addr ADDR]", cmdShell},
	}
}

func run(ctx context.Context, cfg config.Config, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		displayAppname(out, cfg.GetAppName())
		printUsage(out)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(out)
		return errors.Errorf("unknown command %q", args[0])
	}

	var reg *prometheus.Registry
	if args[0] == "shell" {
		reg = prometheus.NewRegistry()
	}
	a, err := newApp(ctx, cfg, in, out, reg)
	if err != nil {
		return err
	}
	defer a.close()
	return cmd.run(ctx, a, args[1:])
}

func printUsage(out io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(out, "Usage: micromanager <command> [flags]")
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", commands[name].usage)
	}
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func passwordOrEnv(p string) string {
	if p != "" {
		return p
	}
	return os.Getenv(passwordEnvVar)
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("login", a.out)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (or "+passwordEnvVar+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := a.client.Login(ctx, *email, passwordOrEnv(*password))
	if err != nil {
		return err
	}
	name := user.Name
	if name == "" {
		name = user.Email
	}
	fmt.Fprintf(a.out, "Welcome, %s.\n", name)
	return nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("register", a.out)
	firstName := fs.String("first-name", "", "first name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (or "+passwordEnvVar+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	err := a.client.Register(ctx, authclient.Registration{
		FirstName: *firstName,
		Email:     *email,
		Password:  passwordOrEnv(*password),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account created. Run `micromanager login` to sign in.")
	return nil
}

func cmdLogout(_ context.Context, a *app, _ []string) error {
	a.client.Logout()
	return nil
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	user, claims, ok, err := a.client.Whoami()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s>\n", user.Name, user.Email)
	if !claims.ExpiresAt.IsZero() {
		state := "valid until"
		if claims.Expired(time.Now()) {
			state = "expired at"
		}
		fmt.Fprintf(a.out, "Access token %s %s\n", state, claims.ExpiresAt.Local().Format(time.DateTime))
	}
	return nil
}

func cmdList(ctx context.Context, a *app, _ []string) error {
	services, err := a.client.List(ctx)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		fmt.Fprintln(a.out, "No microservices.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATUS\tUPDATED\tENDPOINT\tDESCRIPTION")
	for _, s := range services {
		updated := "-"
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Type, s.Status, updated, s.EndpointURL, s.Description)
	}
	return tw.Flush()
}

func parseServiceFlags(name string, a *app, args []string) (micromanager.NewMicroservice, error) {
	fs := newFlagSet(name, a.out)
	svcName := fs.String("name", "", "microservice name")
	file := fs.String("file", "", "path to app.py")
	kind := fs.String("type", "", "microservice type")
	description := fs.String("description", "", "description")
	if err := fs.Parse(args); err != nil {
		return micromanager.NewMicroservice{}, err
	}
	if *file == "" {
		return micromanager.NewMicroservice{}, errors.New("--file is required")
	}
	code, err := os.ReadFile(*file)
	if err != nil {
		return micromanager.NewMicroservice{}, errors.Wrap(err, "read code")
	}
	return micromanager.NewMicroservice{Name: *svcName, Type: *kind, Description: *description, Code: code}, nil
}

func cmdCreate(ctx context.Context, a *app, args []string) error {
	svc, err := parseServiceFlags("create", a, args)
	if err != nil {
		return err
	}
	if err := a.client.Create(ctx, svc); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %s.\n", svc.Name)
	return nil
}

func cmdEdit(ctx context.Context, a *app, args []string) error {
	svc, err := parseServiceFlags("edit", a, args)
	if err != nil {
		return err
	}
	if err := a.client.Edit(ctx, svc); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s.\n", svc.Name)
	return nil
}

func nameArg(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New("expected exactly one microservice name")
	}
	return args[0], nil
}

func cmdStart(ctx context.Context, a *app, args []string) error {
	name, err := nameArg(args)
	if err != nil {
		return err
	}
	if err := a.client.Start(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Started %s.\n", name)
	return nil
}

func cmdStop(ctx context.Context, a *app, args []string) error {
	name, err := nameArg(args)
	if err != nil {
		return err
	}
	if err := a.client.Stop(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Stopped %s.\n", name)
	return nil
}

func cmdToggle(ctx context.Context, a *app, args []string) error {
	name, err := nameArg(args)
	if err != nil {
		return err
	}
	services, err := a.client.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range services {
		if s.Name != name {
			continue
		}
		if err := a.client.Toggle(ctx, s); err != nil {
			return err
		}
		if s.Running() {
			fmt.Fprintf(a.out, "Stopped %s.\n", name)
		} else {
			fmt.Fprintf(a.out, "Started %s.\n", name)
		}
		return nil
	}
	return errors.Errorf("no microservice named %q", name)
}

func cmdDelete(ctx context.Context, a *app, args []string) error {
	name, err := nameArg(args)
	if err != nil {
		return err
	}
	if err := a.client.Delete(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s.\n", name)
	return nil
}

func cmdSummary(ctx context.Context, a *app, _ []string) error {
	s, err := a.client.Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Total: %d  Running: %d  Stopped: %d\n", s.Total, s.Running, s.Stopped)
	for _, t := range s.Types() {
		fmt.Fprintf(a.out, "  %s: %d\n", t, s.ByType[t])
	}
	return nil
}

// cmdShell runs commands from the input until EOF or "exit". The credential cache lives as
// long as the shell, so an expired token is recovered without asking for the password.
func cmdShell(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("shell", a.out)
	metricsAddr := fs.String("metrics-addr", "", "serve gateway metrics on this address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *metricsAddr != "" {
		if err := serveMetrics(ctx, *metricsAddr, a.registry); err != nil {
			return err
		}
	}

	displayAppname(a.out, a.cfg.GetAppName())
	fmt.Fprintln(a.out, "Type `help` for commands, `exit` to quit.")
	scanner := bufio.NewScanner(a.in)
	for {
		fmt.Fprint(a.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}
		line, err := splitArgs(scanner.Text())
		if err != nil {
			fmt.Fprintln(a.out, "error:", err)
			continue
		}
		if len(line) == 0 {
			continue
		}
		switch line[0] {
		case "exit", "quit":
			return nil
		case "help":
			printUsage(a.out)
			continue
		case "shell":
			fmt.Fprintln(a.out, "already in a shell")
			continue
		}
		cmd, ok := commands[line[0]]
		if !ok {
			fmt.Fprintf(a.out, "unknown command %q\n", line[0])
			continue
		}
		if err := cmd.run(ctx, a, line[1:]); err != nil {
			fmt.Fprintln(a.out, "error:", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	if reg == nil {
		return errors.New("metrics registry unavailable")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "metrics listener")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("metrics server")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("serving gateway metrics")
	return nil
}

// splitArgs splits a shell line on whitespace, honouring double quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case !quoted && (r == ' ' || r == '\t'):
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, current.String())
	}
	return args, nil
}
