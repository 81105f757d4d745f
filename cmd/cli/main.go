package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/amirasaad/giftfund/infra/initializer"
	"github.com/amirasaad/giftfund/pkg/app"
	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/service/custodial"
	"github.com/fatih/color"
	"golang.org/x/term"
)

const usage = `Usage: cli <command> [arguments]
Commands:
  status <user_id>          refresh and print the account status
  link <user_id>            mint an onboarding link
  balance <user_id>         print the issuing balance
  resync <account_id>       re-apply the platform state of a connected account
  slug <user_id>            print (and assign if missing) the public profile slug`

// operator is the subset of the custodial service the CLI drives.
type operator interface {
	SynchronizeAccountStatus(ctx context.Context, userID string) (*custodial.AccountStatusSnapshot, error)
	CreateOnboardingLink(ctx context.Context, userID string) (*custodial.OnboardingLinkResult, error)
	GetIssuingBalance(ctx context.Context, userID string) (*custodial.IssuingBalance, error)
	ResyncByExternalID(ctx context.Context, accountID string) (custodial.WebhookOutcome, error)
	ResolveProfileSlug(ctx context.Context, userID string) (string, error)
}

var (
	failure = color.New(color.FgRed, color.Bold)
	success = color.New(color.FgGreen)
)

func main() {
	color.NoColor = !colorEnabled(int(os.Stderr.Fd()))
	if len(os.Args) < 3 {
		fmt.Println(usage)
		os.Exit(2)
	}
	cfg, err := config.Load(".env")
	if err != nil {
		_, _ = failure.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		_, _ = failure.Fprintln(os.Stderr, "Failed to initialize dependencies:", err)
		os.Exit(1)
	}
	svc := app.New(deps, cfg).CustodialService

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cmd, arg := os.Args[1], os.Args[2]
	if err := dispatch(ctx, svc, cmd, arg, os.Stdout); err != nil {
		_, _ = failure.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
	_, _ = success.Fprintf(os.Stderr, "✔ %s %s\n", cmd, arg)
}

// colorEnabled reports whether fd is an interactive terminal and NO_COLOR is unset.
func colorEnabled(fd int) bool {
	return os.Getenv("NO_COLOR") == "" && term.IsTerminal(fd)
}

func dispatch(ctx context.Context, svc operator, cmd, arg string, out io.Writer) error {
	var (
		result any
		err    error
	)
	switch cmd {
	case "status":
		result, err = svc.SynchronizeAccountStatus(ctx, arg)
	case "link":
		result, err = svc.CreateOnboardingLink(ctx, arg)
	case "balance":
		result, err = svc.GetIssuingBalance(ctx, arg)
	case "resync":
		var outcome custodial.WebhookOutcome
		outcome, err = svc.ResyncByExternalID(ctx, arg)
		result = map[string]string{"accountId": arg, "outcome": string(outcome)}
	case "slug":
		var slug string
		slug, err = svc.ResolveProfileSlug(ctx, arg)
		result = map[string]string{"userId": arg, "slug": slug}
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
