package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cogwheel-Validator/spectra-entry-point/chain"
	"github.com/Cogwheel-Validator/spectra-entry-point/memo"
	sqsquery "github.com/Cogwheel-Validator/spectra-entry-point/sqs_query"
)

var (
	memoSqsURLs     []string
	memoIn          string
	memoOut         string
	memoSlippageBps uint32
	memoContract    string
	memoTo          string
	memoRecover     string
	memoVenue       string
	memoTimeout     time.Duration
)

var memoCmd = &cobra.Command{
	Use:   "memo",
	Short: "Build a swap_and_action memo from an SQS quote",
	Long: `Ask an Osmosis SQS endpoint for a single route quote and print the ibc-hooks
wasm memo that swaps the transferred tokens on the entry point and sends the
output to --to.

Examples:
  entrypoint memo --sqs https://sqs.osmosis.zone --in 1000000uosmo --out uion \
    --slippage-bps 100 --contract osmo1... --to osmo1...`,
	RunE: runMemo,
}

func init() {
	f := memoCmd.Flags()
	f.StringSliceVar(&memoSqsURLs, "sqs", nil, "SQS endpoint, repeat for backups")
	f.StringVar(&memoIn, "in", "", "Amount and denom sent, e.g. 1000000uosmo")
	f.StringVar(&memoOut, "out", "", "Denom wanted")
	f.Uint32Var(&memoSlippageBps, "slippage-bps", 100, "Allowed slippage in basis points")
	f.StringVar(&memoContract, "contract", "", "Entry point contract address")
	f.StringVar(&memoTo, "to", "", "Receiver of the swap output")
	f.StringVar(&memoRecover, "recover", "", "Recovery address, wraps the call in swap_and_action_with_recover")
	f.StringVar(&memoVenue, "venue", "osmosis-poolmanager", "Swap venue name registered on the entry point")
	f.DurationVar(&memoTimeout, "timeout", 10*time.Minute, "How long the swap stays valid")
	for _, name := range []string{"sqs", "in", "out", "contract", "to"} {
		_ = memoCmd.MarkFlagRequired(name)
	}
}

func runMemo(cmd *cobra.Command, args []string) error {
	in, err := chain.ParseCoin(memoIn)
	if err != nil {
		return fmt.Errorf("invalid --in: %w", err)
	}

	client, err := sqsquery.NewClient(memoSqsURLs, sqsquery.DefaultFailoverConfig())
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	quote, err := client.QuoteExactIn(ctx, in, memoOut, memoSlippageBps)
	if err != nil {
		return fmt.Errorf("failed to get quote: %w", err)
	}

	out, err := memo.NewBuilder(memoContract).BuildSwapMemo(memo.SwapMemoParams{
		VenueName:        memoVenue,
		Operations:       quote.Operations,
		MinAsset:         quote.MinAsset,
		TimeoutTimestamp: uint64(time.Now().Add(memoTimeout).UnixNano()),
		ReceiverAddress:  memoTo,
		RecoverAddress:   memoRecover,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("in", quote.AmountIn.String()).
		Str("quoted", quote.AmountOut.String()).
		Str("min", quote.MinAsset.String()).
		Str("price_impact", quote.PriceImpact.String()).
		Msg("Quote received")
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
