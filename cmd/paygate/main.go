package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paygate/internal/bootstrap"
	"github.com/railzwaylabs/paygate/internal/clock"
	"github.com/railzwaylabs/paygate/internal/config"
	"github.com/railzwaylabs/paygate/internal/migration"
	"github.com/railzwaylabs/paygate/internal/observability"
	"github.com/railzwaylabs/paygate/internal/payment/domain"
	"github.com/railzwaylabs/paygate/internal/payment/signature"
	"github.com/railzwaylabs/paygate/internal/providers"
	"github.com/railzwaylabs/paygate/internal/redis"
	"github.com/railzwaylabs/paygate/internal/server"
	"github.com/railzwaylabs/paygate/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "paygate",
		Short:         "Paygate payment gateway",
		Version:       readVersionFromEnv(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newAllCmd(), newSignCmd(os.Stdout))
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API and webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runServe()
			return nil
		},
	}
}

type signOptions struct {
	provider  string
	secret    string
	file      string
	timestamp int64
	orderID   string
}

// newSignCmd prints the signature header a provider would attach to a payload.
// Useful for replaying webhooks against a local server.
func newSignCmd(out io.Writer) *cobra.Command {
	opts := signOptions{}
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a webhook payload the way a provider would",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(opts.file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			name, value, err := signPayload(opts, payload)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "%s: %s\n", name, value)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider name (stripe, cryptomus, coingate, nowpayments)")
	cmd.Flags().StringVar(&opts.secret, "secret", "", "webhook secret or API key")
	cmd.Flags().StringVar(&opts.file, "file", "-", "payload file, - for stdin")
	cmd.Flags().Int64Var(&opts.timestamp, "timestamp", 0, "stripe timestamp, defaults to now")
	cmd.Flags().StringVar(&opts.orderID, "order-id", "", "coingate order id")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

func readPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func signPayload(opts signOptions, payload []byte) (string, string, error) {
	provider, ok := domain.ParseProvider(strings.ToLower(strings.TrimSpace(opts.provider)))
	if !ok {
		return "", "", fmt.Errorf("%w: %q", domain.ErrInvalidProvider, opts.provider)
	}

	switch provider {
	case domain.ProviderStripe:
		ts := opts.timestamp
		if ts == 0 {
			ts = time.Now().Unix()
		}
		return signature.StripeSignatureHeader, signature.SignStripe(opts.secret, ts, payload), nil
	case domain.ProviderCryptomus:
		c, err := signature.NewCryptomus([]string{opts.secret}, zap.NewNop())
		if err != nil {
			return "", "", err
		}
		return signature.CryptomusSignatureHeader, c.SignWebhook(payload), nil
	case domain.ProviderNowPayments:
		sig, err := signature.SignNowPayments(opts.secret, payload)
		if err != nil {
			return "", "", err
		}
		return signature.NowPaymentsSignatureHeader, sig, nil
	case domain.ProviderCoinGate:
		if strings.TrimSpace(opts.orderID) == "" {
			return "", "", errors.New("coingate callbacks need --order-id")
		}
		return "token", signature.CoinGateToken(opts.secret, opts.orderID), nil
	default:
		return "", "", fmt.Errorf("%w: %q", domain.ErrProviderNotFound, opts.provider)
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.WithLogger(fxLogger),
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.WithLogger(fxLogger),
		fx.Provide(registerSnowflake),
		db.Module,
		bootstrap.Module,
		clock.Module,
		redis.Module,
		providers.Module,
		server.Module,
	)
	app.Run()
}

func fxLogger(log *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: log.Named("fx")}
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
