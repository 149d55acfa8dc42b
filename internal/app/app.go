package app

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"

	"github.com/gluk-w/sshagent/internal/api"
	"github.com/gluk-w/sshagent/internal/config"
	"github.com/gluk-w/sshagent/internal/keys"
	"github.com/gluk-w/sshagent/internal/keystore"
	"github.com/gluk-w/sshagent/internal/logging"
	"github.com/gluk-w/sshagent/internal/secmem"
	"github.com/gluk-w/sshagent/internal/sshkeys"
)

const (
	CommandInspect = "inspect"
	CommandAdd     = "add"
	CommandList    = "list"
	CommandPublic  = "public"
	CommandExport  = "export"
	CommandRemove  = "remove"
	CommandLogs    = "logs"
	CommandServe   = "serve"

	FlagLogLevel   = "log-level"
	FlagLogFormat  = "log-format"
	FlagComment    = "comment"
	FlagPassphrase = "passphrase"
	FlagOutput     = "output"
	FlagAll        = "all"
	FlagLines      = "lines"
	FlagListen     = "listen"

	OutputText = "text"
	OutputYAML = "yaml"
)

var errUsage = errors.New("wrong number of arguments")

// New builds the sshagent-keys command line application.
func New(version string) *cli.App {
	passphraseFlag := &cli.StringFlag{
		Name:    FlagPassphrase,
		Usage:   "Passphrase of an encrypted private key file",
		EnvVars: []string{"SSHAGENT_PASSPHRASE"},
	}

	return &cli.App{
		Name:    "sshagent-keys",
		Usage:   "Inspect SSH private keys and manage a local store of agent identities",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        FlagLogLevel,
				Usage:       fmt.Sprintf("Log level, one of %v", logging.Levels),
				DefaultText: "SSHAGENT_LOG_LEVEL or info",
			},
			&cli.StringFlag{
				Name:        FlagLogFormat,
				Usage:       fmt.Sprintf("Log format, one of %v", logging.Formats),
				DefaultText: "SSHAGENT_LOG_FORMAT or text",
			},
		},
		Before: func(c *cli.Context) error {
			if err := config.Load(); err != nil {
				return err
			}
			if c.IsSet(FlagLogLevel) {
				config.Cfg.LogLevel = c.String(FlagLogLevel)
			}
			if c.IsSet(FlagLogFormat) {
				config.Cfg.LogFormat = c.String(FlagLogFormat)
			}
			return logging.Init()
		},
		After: func(*cli.Context) error {
			logging.Close()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      CommandInspect,
				Usage:     "Print type, fingerprint and public key of a private key file",
				ArgsUsage: "FILE",
				Flags:     []cli.Flag{passphraseFlag},
				Action:    inspect,
			},
			{
				Name:      CommandAdd,
				Usage:     "Import a private key file into the store",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					passphraseFlag,
					&cli.StringFlag{
						Name:        FlagComment,
						Aliases:     []string{"c"},
						Usage:       "Comment stored with the identity",
						DefaultText: "file name",
					},
				},
				Action: add,
			},
			{
				Name:    CommandList,
				Usage:   "List stored identities",
				Aliases: []string{"ls"},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    FlagOutput,
						Aliases: []string{"o"},
						Usage:   "Output format, text or yaml",
						Value:   OutputText,
					},
				},
				Action: list,
			},
			{
				Name:      CommandPublic,
				Usage:     "Print the authorized_keys line of a stored identity",
				ArgsUsage: "ID",
				Action:    public,
			},
			{
				Name:      CommandExport,
				Usage:     "Print a stored identity as an OpenSSH private key",
				ArgsUsage: "ID",
				Action:    export,
			},
			{
				Name:      CommandRemove,
				Usage:     "Remove a stored identity",
				Aliases:   []string{"rm"},
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  FlagAll,
						Usage: "Remove every stored identity",
					},
				},
				Action: remove,
			},
			{
				Name:  CommandLogs,
				Usage: "Print the tail of the log file",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    FlagLines,
						Aliases: []string{"n"},
						Value:   50,
					},
				},
				Action: logs,
			},
			{
				Name:  CommandServe,
				Usage: "Serve stored public keys over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        FlagListen,
						Aliases:     []string{"l"},
						Usage:       "Address to listen on",
						DefaultText: "SSHAGENT_LISTEN_ADDR or 127.0.0.1:8022",
					},
				},
				Action: serve,
			},
		},
	}
}

func oneArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s: %w: want 1, got %d", c.Command.Name, errUsage, c.NArg())
	}
	return c.Args().First(), nil
}

func openStore() (*keystore.Store, error) {
	return keystore.Open(config.Cfg.DatabasePath)
}

// closeStore closes store and folds a close failure into *errp.
func closeStore(store *keystore.Store, errp *error) {
	if cerr := store.Close(); cerr != nil {
		*errp = multierror.Append(*errp, fmt.Errorf("close store: %w", cerr)).ErrorOrNil()
	}
}

func readPrivateKey(c *cli.Context, path string) (keys.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	defer secmem.Wipe(data)

	if pass := c.String(FlagPassphrase); pass != "" {
		return parseWithPassphrase(data, []byte(pass))
	}
	k, err := sshkeys.ParsePrivateKeyPEM(data)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		return nil, fmt.Errorf("%s is encrypted, pass --%s", path, FlagPassphrase)
	}
	return k, err
}

// parseWithPassphrase parses data and wipes passphrase before returning.
func parseWithPassphrase(data, passphrase []byte) (keys.PrivateKey, error) {
	defer secmem.Wipe(passphrase)
	return sshkeys.ParsePrivateKeyPEMWithPassphrase(data, passphrase)
}

type inspection struct {
	File          string `yaml:"file"`
	KeyType       string `yaml:"key_type"`
	Fingerprint   string `yaml:"fingerprint"`
	WireLength    int    `yaml:"wire_length"`
	AuthorizedKey string `yaml:"authorized_key"`
}

func inspect(c *cli.Context) error {
	path, err := oneArg(c)
	if err != nil {
		return err
	}
	k, err := readPrivateKey(c, path)
	if err != nil {
		return err
	}
	size := keys.PrivateKeySize(k)
	pub := keys.Project(k)

	return writeYAML(c, inspection{
		File:          path,
		KeyType:       pub.KeyType(),
		Fingerprint:   sshkeys.Fingerprint(pub),
		WireLength:    size,
		AuthorizedKey: string(sshkeys.MarshalAuthorizedKey(pub, "")),
	})
}

func add(c *cli.Context) (err error) {
	path, err := oneArg(c)
	if err != nil {
		return err
	}
	k, err := readPrivateKey(c, path)
	if err != nil {
		return err
	}
	defer k.Destroy()

	comment := c.String(FlagComment)
	if !c.IsSet(FlagComment) {
		comment = filepath.Base(path)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store, &err)

	ident, err := store.Add(k, comment)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "%s %s %s\n", ident.ID, ident.KeyType, ident.Fingerprint)
	return err
}

func list(c *cli.Context) (err error) {
	format := c.String(FlagOutput)
	if format != OutputText && format != OutputYAML {
		return fmt.Errorf("unknown output format: %s", format)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store, &err)

	idents, err := store.List()
	if err != nil {
		return err
	}
	if format == OutputYAML {
		return writeYAML(c, idents)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tFINGERPRINT\tCOMMENT")
	for _, ident := range idents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ident.ID, ident.KeyType, ident.Fingerprint, logging.Sanitize(ident.Comment))
	}
	return tw.Flush()
}

func public(c *cli.Context) (err error) {
	id, err := oneArg(c)
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store, &err)

	ident, pub, err := store.PublicIdentity(id)
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(sshkeys.MarshalAuthorizedKey(pub, logging.Sanitize(ident.Comment)))
	return err
}

func export(c *cli.Context) (err error) {
	id, err := oneArg(c)
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store, &err)

	ident, k, err := store.PrivateIdentity(id)
	if err != nil {
		return err
	}
	defer k.Destroy()

	pemBytes, err := sshkeys.MarshalPrivateKeyPEM(k, ident.Comment)
	if err != nil {
		return err
	}
	defer secmem.Wipe(pemBytes)

	log.WithFields(log.Fields{"component": "cli", "id": id}).Warn("private key exported")
	_, err = c.App.Writer.Write(pemBytes)
	return err
}

func remove(c *cli.Context) (err error) {
	all := c.Bool(FlagAll)
	var id string
	if all {
		if c.NArg() != 0 {
			return fmt.Errorf("%s: --%s takes no arguments", CommandRemove, FlagAll)
		}
	} else if id, err = oneArg(c); err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store, &err)

	if all {
		n, err := store.RemoveAll()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.App.Writer, "removed %d identities\n", n)
		return err
	}
	if err := store.Remove(id); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "removed %s\n", id)
	return err
}

func logs(c *cli.Context) error {
	lines, err := logging.Tail(c.Int(FlagLines))
	if errors.Is(err, logging.ErrNoLogFile) {
		return fmt.Errorf("%w, set SSHAGENT_LOG_PATH", err)
	}
	if err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(c.App.Writer, line); err != nil {
			return err
		}
	}
	return nil
}

func serve(c *cli.Context) (err error) {
	addr := config.Cfg.ListenAddr
	if c.IsSet(FlagListen) {
		addr = c.String(FlagListen)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(store, &err)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return api.Serve(ctx, ln, store)
}

func writeYAML(c *cli.Context, v any) error {
	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
