package cli

import (
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/cobra"

	"github.com/ethertulip/tulip-deployer/internal/cli/render"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// NewDevnetCmd creates the devnet command with subcommands
func NewDevnetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devnet",
		Short: "Control a local development node",
		Long: `Change the state of a local development node (anvil or hardhat): fork a
live network, move time forward, impersonate accounts and mine blocks.
These commands refuse to run against remote networks.`,
	}

	cmd.AddCommand(
		newDevnetForkCmd(),
		newDevnetTimestampCmd(),
		newDevnetImpersonateCmd(),
		newDevnetStopImpersonatingCmd(),
		newDevnetMineCmd(),
		newDevnetSetBalanceCmd(),
		newDevnetNodeCmd(),
	)
	return cmd
}

func newDevnetForkCmd() *cobra.Command {
	var block uint64

	cmd := &cobra.Command{
		Use:   "fork <source-rpc-url>",
		Short: "Reset the node to a fork of another network",
		Long: `Reset the node to a fork of the network behind source-rpc-url. Without
--block the fork starts at the source's latest block.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevnet(cmd, usecase.ManageDevnetParams{
				Operation: usecase.DevnetFork,
				SourceURL: args[0],
				Block:     block,
			})
		},
	}

	cmd.Flags().Uint64Var(&block, "block", 0, "Block number to fork at")
	return cmd
}

func newDevnetTimestampCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timestamp <unix-seconds>",
		Short: "Set the timestamp of the next block",
		Long:  `Set the timestamp of the next mined block. It must be after the current head's.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid timestamp %q: %w", args[0], err)
			}
			return runDevnet(cmd, usecase.ManageDevnetParams{
				Operation: usecase.DevnetTimestamp,
				Timestamp: ts,
			})
		},
	}
}

func newDevnetImpersonateCmd() *cobra.Command {
	var balance string

	cmd := &cobra.Command{
		Use:   "impersonate <address>",
		Short: "Send transactions from an address without its key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := usecase.ManageDevnetParams{
				Operation: usecase.DevnetImpersonate,
				Address:   args[0],
			}
			if balance != "" {
				wei, err := parseBalance(balance)
				if err != nil {
					return err
				}
				req.Balance = wei
			}
			return runDevnet(cmd, req)
		},
	}

	cmd.Flags().StringVar(&balance, "balance", "", "Also fund the address (wei, or with an ether suffix)")
	return cmd
}

func newDevnetStopImpersonatingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop-impersonating <address>",
		Short: "Stop impersonating an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevnet(cmd, usecase.ManageDevnetParams{
				Operation: usecase.DevnetStopImpersonating,
				Address:   args[0],
			})
		},
	}
}

func newDevnetMineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine [blocks]",
		Short: "Mine blocks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blocks := uint64(1)
			if len(args) == 1 {
				n, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil || n == 0 {
					return fmt.Errorf("invalid block count %q", args[0])
				}
				blocks = n
			}
			return runDevnet(cmd, usecase.ManageDevnetParams{
				Operation: usecase.DevnetMine,
				Blocks:    blocks,
			})
		},
	}
}

func newDevnetSetBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-balance <address> <amount>",
		Short: "Set the balance of an address",
		Long:  `Set the balance of an address. The amount is in wei, or in ether with an ether suffix (e.g. 10ether).`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wei, err := parseBalance(args[1])
			if err != nil {
				return err
			}
			return runDevnet(cmd, usecase.ManageDevnetParams{
				Operation: usecase.DevnetSetBalance,
				Address:   args[0],
				Balance:   wei,
			})
		},
	}
}

func newDevnetNodeCmd() *cobra.Command {
	var opts usecase.NodeOptions

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run a local anvil node in the foreground",
		Long: `Start anvil and keep it running until interrupted. Without --port a free
port is picked.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{noTimeoutAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			renderer := render.NewDevnetRenderer(cmd.OutOrStdout())
			return app.ManageDevnet.RunNode(ctx, opts, renderer.RenderNodeStarted)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "RPC port to bind")
	cmd.Flags().Uint64Var(&opts.ChainID, "chain-id", 0, "Chain id of the node (default 31337)")
	cmd.Flags().StringVar(&opts.ForkURL, "fork-url", "", "Fork the network behind this RPC endpoint")
	cmd.Flags().Uint64Var(&opts.ForkAt, "fork-block", 0, "Block number to fork at")
	cmd.Flags().StringVar(&opts.LogLevel, "node-log", "", "Node log level, silent suppresses anvil output")
	return cmd
}

func runDevnet(cmd *cobra.Command, req usecase.ManageDevnetParams) error {
	app, err := getApp(cmd)
	if err != nil {
		return err
	}

	result, err := app.ManageDevnet.Execute(cmd.Context(), req)
	if err != nil {
		return err
	}
	if app.Config.JSON {
		return render.JSON(cmd.OutOrStdout(), result)
	}
	return render.NewDevnetRenderer(cmd.OutOrStdout()).Render(result)
}

// parseBalance parses a wei amount, or a decimal amount with an ether suffix
func parseBalance(s string) (*big.Int, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	unit := big.NewInt(1)
	if rest, ok := strings.CutSuffix(raw, "ether"); ok {
		raw = strings.TrimSpace(rest)
		unit = big.NewInt(params.Ether)
	} else if rest, ok := strings.CutSuffix(raw, "wei"); ok {
		raw = strings.TrimSpace(rest)
	}

	amount, ok := new(big.Rat).SetString(raw)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid balance %q", s)
	}
	amount.Mul(amount, new(big.Rat).SetInt(unit))
	if !amount.IsInt() {
		return nil, fmt.Errorf("invalid balance %q: not a whole number of wei", s)
	}
	return new(big.Int).Set(amount.Num()), nil
}
