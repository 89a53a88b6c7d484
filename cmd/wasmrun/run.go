package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/hashicorp/go-version"
	"github.com/spf13/cobra"

	"github.com/tinywasm/tinywasm"
	"github.com/tinywasm/tinywasm/api"
)

// supportedFeatureVersion is the highest Wasm proposal-set version this build of wasmrun was
// compiled to support: 1.0.0 is the MVP, 1.1.0 adds multi-value and sign-extension-ops.
var supportedFeatureVersion = version.Must(version.NewVersion("1.1.0"))

var (
	invokeName  string
	minVersion  string
	multiValue  bool
	signExtends bool
)

var runCmd = &cobra.Command{
	Use:   "run <file.wat|file.wasm>",
	Short: "Instantiate a module and optionally invoke one of its exports",
	Args:  cobra.ExactArgs(1),
	RunE:  runModule,
}

func init() {
	runCmd.Flags().StringVar(&invokeName, "invoke", "", "exported function to call after instantiation")
	runCmd.Flags().StringVar(&minVersion, "min-version", "1.0.0", "minimum Wasm proposal-set version the module requires")
	runCmd.Flags().BoolVar(&multiValue, "multi-value", false, "enable the multi-value proposal")
	runCmd.Flags().BoolVar(&signExtends, "sign-extension-ops", false, "enable the sign-extension-ops proposal")
}

func runModule(cmd *cobra.Command, args []string) error {
	required, err := version.NewVersion(minVersion)
	if err != nil {
		return fmt.Errorf("invalid --min-version %q: %w", minVersion, err)
	}
	if required.GreaterThan(supportedFeatureVersion) {
		return fmt.Errorf("module requires Wasm proposal-set %s, this build of wasmrun supports up to %s", required, supportedFeatureVersion)
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	rc := tinywasm.NewRuntimeConfig().
		WithFeatureMultiValue(multiValue).
		WithFeatureSignExtensionOps(signExtends)
	r := tinywasm.NewRuntimeWithConfig(rc)
	ctx := context.Background()
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, source)
	if err != nil {
		printTrap(err)
		return err
	}

	mod, err := r.InstantiateModule(ctx, compiled, tinywasm.NewModuleConfig())
	if err != nil {
		printTrap(err)
		return err
	}

	if invokeName == "" {
		color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "instantiated", mod.Name())
		return nil
	}

	fn := mod.ExportedFunction(invokeName)
	if fn == nil {
		return fmt.Errorf("no exported function named %q", invokeName)
	}

	params, err := parseParams(fn.Definition(), args[1:])
	if err != nil {
		return err
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		printTrap(err)
		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "%s(%v) = %v\n", invokeName, params, results)
	return nil
}

// parseParams decodes the CLI's string arguments into the uint64 encoding tinywasm.Function.Call
// expects, per the function's declared parameter types.
func parseParams(def api.FunctionDefinition, raw []string) ([]uint64, error) {
	pts := def.ParamTypes()
	if len(raw) != len(pts) {
		return nil, fmt.Errorf("%s expects %d param(s), got %d", def.DebugName(), len(pts), len(raw))
	}
	out := make([]uint64, len(raw))
	for i, s := range raw {
		switch pts[i] {
		case api.ValueTypeI32:
			n, err := strconv.ParseInt(s, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("param[%d]: %w", i, err)
			}
			out[i] = api.EncodeI32(int32(n))
		case api.ValueTypeI64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("param[%d]: %w", i, err)
			}
			out[i] = api.EncodeI64(n)
		case api.ValueTypeF32:
			f, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, fmt.Errorf("param[%d]: %w", i, err)
			}
			out[i] = api.EncodeF32(float32(f))
		case api.ValueTypeF64:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("param[%d]: %w", i, err)
			}
			out[i] = api.EncodeF64(f)
		default:
			return nil, fmt.Errorf("param[%d]: unsupported value type %#x", i, pts[i])
		}
	}
	return out, nil
}

func printTrap(err error) {
	color.New(color.FgRed).Fprintln(os.Stderr, err)
}
