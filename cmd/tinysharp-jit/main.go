// Command tinysharp-jit loads a YAML method list (pkg/asmtext), verifies
// and compiles every method into a single in-process runtime (pkg/runtime),
// and optionally dumps the verified block graph, the generated LLVM IR, or
// runs one named entry method. Its shape — a cobra root command with
// boolean --dXxx debug-dump flags each routed to a do<Phase> function — is
// the same one cmd/ralph-cc/main.go uses for its own compilation pipeline.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"tinygo.org/x/go-llvm"

	"github.com/raymyers/tinysharp-go/pkg/asmtext"
	"github.com/raymyers/tinysharp-go/pkg/handle"
	"github.com/raymyers/tinysharp-go/pkg/path"
	"github.com/raymyers/tinysharp-go/pkg/runtime"
)

var errEntryNotFound = fmt.Errorf("no loaded method matches --entry-assembly/--entry-namespace/--entry-class/--entry-method")

var version = "0.1.0"

var (
	dVerify bool
	dLLVM   bool
	dRun    bool
)

var (
	entryAssembly string
	entryNS       string
	entryClass    string
	entryMethod   string
	entryArgs     []string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tinysharp-jit [file]",
		Short:         "tinysharp-jit loads, verifies, and JIT-compiles a method list",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doLoad(args[0], out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVar(&dVerify, "dverify", false, "Dump the verified block graph of every method")
	rootCmd.Flags().BoolVar(&dLLVM, "dllvm", false, "Dump the generated LLVM IR")
	rootCmd.Flags().BoolVar(&dRun, "drun", false, "Run the method named by --entry-* and print its result")

	rootCmd.Flags().StringVar(&entryAssembly, "entry-assembly", "", "Assembly of the entry method for --drun")
	rootCmd.Flags().StringVar(&entryNS, "entry-namespace", "", "Namespace of the entry method for --drun")
	rootCmd.Flags().StringVar(&entryClass, "entry-class", "", "Class of the entry method for --drun")
	rootCmd.Flags().StringVar(&entryMethod, "entry-method", "", "Name of the entry method for --drun")
	rootCmd.Flags().StringArrayVar(&entryArgs, "arg", nil, "Integer argument for --drun, repeatable, in order")

	return rootCmd
}

func doLoad(filename string, out, errOut io.Writer) error {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(errOut, "tinysharp-jit: %v\n", err)
		return err
	}
	defer f.Close()

	methods, err := asmtext.Load(f)
	if err != nil {
		fmt.Fprintf(errOut, "tinysharp-jit: %v\n", err)
		return err
	}

	rt, err := runtime.Init()
	if err != nil {
		fmt.Fprintf(errOut, "tinysharp-jit: %v\n", err)
		return err
	}
	defer rt.Close()

	for _, m := range methods {
		if err := rt.AddMethod(m.Signature, m.Locals, m.Ops, m.Path); err != nil {
			fmt.Fprintf(errOut, "tinysharp-jit: verifying %s: %v\n", m.Path.Ident(), err)
			return err
		}
	}

	if dVerify {
		doVerify(out, rt)
	}

	if err := rt.CompileAll(); err != nil {
		fmt.Fprintf(errOut, "tinysharp-jit: %v\n", err)
		return err
	}

	if dLLVM {
		doLLVM(out, rt)
	}

	if dRun {
		return doRun(out, errOut, rt)
	}
	return nil
}

func doVerify(out io.Writer, rt *runtime.Runtime) {
	for _, m := range rt.Methods() {
		fmt.Fprintf(out, "method %s: %s\n", m.Ident, m.Signature)
		for _, b := range m.Verified.Blocks {
			state, _ := b.State()
			fmt.Fprintf(out, "  block@%d edge=%s ops=%d exit-stack=%v\n", b.StartIndex, b.Edge, len(b.Ops), state.Types())
		}
	}
}

func doLLVM(out io.Writer, rt *runtime.Runtime) {
	fmt.Fprintln(out, rt.Module().String())
}

func doRun(out, errOut io.Writer, rt *runtime.Runtime) error {
	p, ok := findEntryPath(rt, entryAssembly, entryNS, entryClass, entryMethod)
	if !ok {
		fmt.Fprintf(errOut, "tinysharp-jit: %v\n", errEntryNotFound)
		return errEntryNotFound
	}
	ref, err := handle.Resolve[int32](rt, p)
	if err != nil {
		fmt.Fprintf(errOut, "tinysharp-jit: %v\n", err)
		return err
	}

	args := make([]any, len(entryArgs))
	for i, a := range entryArgs {
		n, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			fmt.Fprintf(errOut, "tinysharp-jit: invalid --arg %q: %v\n", a, err)
			return err
		}
		args[i] = int32(n)
	}

	ctx := llvm.GlobalContext()
	result, err := ref.Call(ctx, args...)
	if err != nil {
		fmt.Fprintf(errOut, "tinysharp-jit: %v\n", err)
		return err
	}
	fmt.Fprintln(out, result)
	return nil
}

// findEntryPath looks up the already-registered method whose name
// components match, and rebuilds its MethodPath from the signature the
// runtime already recorded for it — --drun never needs its own copy of
// the method's signature on the command line.
func findEntryPath(rt *runtime.Runtime, assembly, namespace, class, method string) (path.MethodPath, bool) {
	prefix := strings.Join([]string{assembly, namespace, class, method}, "*") + "*"
	for _, m := range rt.Methods() {
		if strings.HasPrefix(m.Ident, prefix) {
			return path.NewMethodPath(assembly, namespace, class, method, m.Signature), true
		}
	}
	return path.MethodPath{}, false
}
