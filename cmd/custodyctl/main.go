// custodyctl is an operator CLI for a running custodyd instance.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/fatih/color"

	client "github.com/liquidityos/custody-engine-go/clients/custody"
)

const usage = `usage:
  custodyctl [-url http://localhost:8090] health
  custodyctl escrow create  --owner <hex> --amount <dec> --seed <n> [--counterparty <hex>] [--release-at <rfc3339>] [--percent <p>]
  custodyctl escrow get     --address <hex>
  custodyctl escrow execute --address <hex> --caller <hex> --owner <hex> --seed <n> [--amount <dec>]
  custodyctl escrow cancel  --address <hex> --caller <hex> --owner <hex> --seed <n>
  custodyctl escrow close   --address <hex> --caller <hex> --owner <hex> --seed <n>
  custodyctl vesting create   --admin <hex> --beneficiary <hex> --total <dec> --period <dur> --cliff <dur> --seed <n>
  custodyctl vesting get      --address <hex>
  custodyctl vesting withdraw --address <hex> --caller <hex> --admin <hex> --beneficiary <hex> --seed <n> --amount <dec>
  custodyctl vesting cancel   --address <hex> --caller <hex> --admin <hex> --beneficiary <hex> --seed <n>
  custodyctl vesting close    --address <hex> --caller <hex> --admin <hex> --beneficiary <hex> --seed <n>`

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
)

func main() {
	url := "http://localhost:8090"
	args := os.Args[1:]
	if len(args) >= 2 && args[0] == "-url" {
		url = args[1]
		args = args[2:]
	}
	if len(args) < 1 {
		fail(usage)
	}

	c := client.NewClient(url)
	ctx := context.Background()

	switch args[0] {
	case "health":
		if err := c.Health(ctx); err != nil {
			fail("health check failed: %v", err)
		}
		ok("custodyd is healthy")
	case "escrow":
		runEscrow(ctx, c, args[1:])
	case "vesting":
		runVesting(ctx, c, args[1:])
	default:
		fail(usage)
	}
}

func runEscrow(ctx context.Context, c *client.Client, args []string) {
	if len(args) < 1 {
		fail(usage)
	}
	fs := flag.NewFlagSet("escrow "+args[0], flag.ExitOnError)
	var (
		address      = fs.String("address", "", "custody address (hex)")
		owner        = fs.String("owner", "", "owner identity (hex)")
		caller       = fs.String("caller", "", "caller identity (hex)")
		counterparty = fs.String("counterparty", "", "counterparty identity (hex)")
		amount       = fs.String("amount", "", "amount (decimal value units)")
		seed         = fs.Uint64("seed", 0, "address seed")
		releaseAt    = fs.String("release-at", "", "timestamp condition (RFC 3339)")
		percent      = fs.Uint("percent", 0, "percentage-threshold condition")
	)
	if err := fs.Parse(args[1:]); err != nil {
		fail("%v", err)
	}

	switch args[0] {
	case "create":
		cond := client.Condition{Type: "unconditional"}
		if *releaseAt != "" {
			t, err := time.Parse(time.RFC3339, *releaseAt)
			if err != nil {
				fail("parse --release-at: %v", err)
			}
			cond = client.Condition{Type: "timestamp", Timestamp: t.Unix()}
		} else if *percent > 0 {
			cond = client.Condition{Type: "percentage", Percent: uint32(*percent)}
		}
		esc, err := c.CreateEscrow(ctx, client.CreateEscrowRequest{
			Owner:        *owner,
			Counterparty: *counterparty,
			Amount:       *amount,
			Seed:         *seed,
			Condition:    cond,
		})
		report(esc, err, "escrow created at %s", esc.Address)
	case "get":
		esc, err := c.GetEscrow(ctx, *address)
		report(esc, err, "escrow %s is %s", esc.Address, esc.State)
	case "execute":
		esc, err := c.ExecuteEscrow(ctx, *address, client.EscrowOp{
			Caller: *caller, Owner: *owner, Seed: *seed, Amount: *amount,
		})
		report(esc, err, "escrow executed")
	case "cancel":
		esc, err := c.CancelEscrow(ctx, *address, client.EscrowOp{
			Caller: *caller, Owner: *owner, Seed: *seed,
		})
		report(esc, err, "escrow cancelled")
	case "close":
		err := c.CloseEscrow(ctx, *address, client.EscrowOp{
			Caller: *caller, Owner: *owner, Seed: *seed,
		})
		report(nil, err, "escrow closed")
	default:
		fail(usage)
	}
}

func runVesting(ctx context.Context, c *client.Client, args []string) {
	if len(args) < 1 {
		fail(usage)
	}
	fs := flag.NewFlagSet("vesting "+args[0], flag.ExitOnError)
	var (
		address     = fs.String("address", "", "schedule address (hex)")
		admin       = fs.String("admin", "", "admin identity (hex)")
		beneficiary = fs.String("beneficiary", "", "beneficiary identity (hex)")
		caller      = fs.String("caller", "", "caller identity (hex)")
		total       = fs.String("total", "", "total amount (decimal value units)")
		amount      = fs.String("amount", "", "withdraw amount (decimal value units)")
		period      = fs.Duration("period", 0, "vesting period")
		cliff       = fs.Duration("cliff", 0, "cliff period")
		seed        = fs.Uint64("seed", 0, "address seed")
	)
	if err := fs.Parse(args[1:]); err != nil {
		fail("%v", err)
	}

	switch args[0] {
	case "create":
		v, err := c.CreateVesting(ctx, client.CreateVestingRequest{
			Admin:                *admin,
			Beneficiary:          *beneficiary,
			Total:                *total,
			VestingPeriodSeconds: int64(period.Seconds()),
			CliffPeriodSeconds:   int64(cliff.Seconds()),
			Seed:                 *seed,
		})
		report(v, err, "vesting schedule created at %s", v.Address)
	case "get":
		v, err := c.GetVesting(ctx, *address)
		report(v, err, "vesting %s is %s (released %s of %s)", v.Address, v.State, v.Released, v.Total)
	case "withdraw":
		v, err := c.Withdraw(ctx, *address, client.VestingOp{
			Caller: *caller, Admin: *admin, Beneficiary: *beneficiary, Seed: *seed, Amount: *amount,
		})
		report(v, err, "withdrew %s", *amount)
	case "cancel":
		v, err := c.CancelVesting(ctx, *address, client.VestingOp{
			Caller: *caller, Admin: *admin, Beneficiary: *beneficiary, Seed: *seed,
		})
		report(v, err, "vesting cancelled")
	case "close":
		err := c.CloseVesting(ctx, *address, client.VestingOp{
			Caller: *caller, Admin: *admin, Beneficiary: *beneficiary, Seed: *seed,
		})
		report(nil, err, "vesting closed")
	default:
		fail(usage)
	}
}

func report(payload any, err error, format string, args ...any) {
	if err != nil {
		fail("%v", err)
	}
	ok(format, args...)
	if payload != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(payload)
	}
}

func ok(format string, args ...any) {
	okColor.Fprintf(os.Stderr, format+"\n", args...)
}

func fail(format string, args ...any) {
	failColor.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
