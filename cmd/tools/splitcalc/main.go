package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/noah-isme/backend-vending/internal/apps"
	"github.com/noah-isme/backend-vending/internal/vending"
	"github.com/noah-isme/backend-vending/internal/vendingconfig"
)

// splitcalc prints how an amount paid for an app is divided between the fee,
// the developer and the platforms.
// Exit code 0 = ok, 1 = rejected amount or share error, 2 = usage or config error.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("splitcalc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		schedulePath = fs.String("schedule", "vending.json", "path to the vending configuration document")
		appID        = fs.String("app", "", "application id")
		amount       = fs.Int64("amount", -1, "amount in minor currency units")
		share        = fs.Int("share", 0, "developer share percent overriding the app setup (10-100)")
		preferred    = fs.Bool("preferred", false, "apply the preferred payment method fee")
		asJSON       = fs.Bool("json", false, "print the result as JSON")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *appID == "" || *amount < 0 {
		fmt.Fprintln(stderr, "splitcalc: -app and a non-negative -amount are required")
		fs.Usage()
		return 2
	}

	snap, err := vendingconfig.Load(*schedulePath)
	if err != nil {
		fmt.Fprintf(stderr, "splitcalc: %v\n", err)
		return 2
	}
	setup, err := snap.Apps.Get(*appID)
	if err != nil {
		fmt.Fprintf(stderr, "splitcalc: %v\n", err)
		return 2
	}
	appShare := setup.AppShare
	if *share != 0 {
		appShare = *share
	}
	if err := setup.CheckAmount(*amount); err != nil {
		fmt.Fprintf(stderr, "splitcalc: %v\n", err)
		return 1
	}
	res, err := vending.Calculate(setup.Ref(), appShare, *amount, snap.Schedule, vending.WithPreferred(*preferred))
	if err != nil {
		fmt.Fprintf(stderr, "splitcalc: %v\n", err)
		if errors.Is(err, vending.ErrInvalidSchedule) {
			return 2
		}
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(stderr, "splitcalc: %v\n", err)
			return 2
		}
		return 0
	}
	printTable(stdout, setup, res)
	return 0
}

func printTable(w io.Writer, setup apps.Setup, res vending.Result) {
	currency := setup.Currency
	if currency == "" {
		currency = "-"
	}
	fmt.Fprintf(w, "app %s on %s, developer share %d%%, amount %d %s\n", res.App.ID, res.Platform, res.AppShare, res.Price, currency)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAYEE\tKIND\tWEIGHT\tAMOUNT")
	weights := make(map[string]vending.Percent, len(res.Shares))
	for _, s := range res.Shares {
		weights[s.PayeeID] = s.Weight
	}
	for _, a := range res.Breakdown {
		weight := "-"
		if bp, ok := weights[a.PayeeID]; ok && a.Kind != vending.KindFee {
			weight = bp.String() + "%"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", a.PayeeID, a.Kind, weight, a.Amount)
	}
	fmt.Fprintf(tw, "total\t\t\t%d\n", res.Breakdown.Total())
	_ = tw.Flush()
}
