// mg-gen generates Go code and diagrams from machine definitions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/lithammer/dedent"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pancsta/machinegen/internal/utils"
	"github.com/pancsta/machinegen/pkg/graph"
	"github.com/pancsta/machinegen/pkg/spec"
	"github.com/pancsta/machinegen/tools/generator"
	"github.com/pancsta/machinegen/tools/generator/cli"
	"github.com/pancsta/machinegen/tools/visualizer"
)

func init() {
	// read .env
	_ = godotenv.Load()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use: "mg-gen",
		Long: strings.Trim(dedent.Dedent(`
			mg-gen generates Go state machines and diagrams from YAML or JSON
			definitions.

			Example:
			$ mg-gen code -f door.yaml

			Example:
			$ mg-gen dot -f door.yaml --mode hide --watch -o door.dot

			Example:
			$ mg-gen check -f door.yaml,lock.yaml
		`), "\n"),
		Run: func(cmd *cobra.Command, args []string) {
			params := cli.ParseRootParams(cmd, args)

			// print the version
			if params.Version {
				fmt.Println(utils.GetVersion())
				os.Exit(0)
			}
			_ = cmd.Help()
		},
	}
	cli.AddRootFlags(rootCmd)

	// code
	codeCmd := &cobra.Command{
		Use:   "code -f door.yaml [-o door_mg.go] [-p door]",
		Short: "Generate a Go package file",
		Run:   genCode(ctx),
	}
	cli.AddCodeFlags(codeCmd)
	rootCmd.AddCommand(codeCmd)

	// dot
	dotCmd := &cobra.Command{
		Use:   "dot -f door.yaml [--mode show|hide|pretty] [--watch]",
		Short: "Render a Graphviz diagram",
		Long: strings.Trim(dedent.Dedent(`
			Render a Graphviz diagram. Pretty defaults need evaluated values, so
			outside of generated code they fall back to written defaults. Use the
			Dotfile(visualizer.PrettyDefaults) func of the generated package
			instead.
		`), "\n"),
		Run: genDiagram(ctx, false),
	}
	cli.AddDotFlags(dotCmd)
	rootCmd.AddCommand(dotCmd)

	// mermaid
	mermaidCmd := &cobra.Command{
		Use:   "mermaid -f door.yaml",
		Short: "Render a Mermaid state diagram",
		Run:   genDiagram(ctx, true),
	}
	cli.AddMermaidFlags(mermaidCmd)
	rootCmd.AddCommand(mermaidCmd)

	// check
	checkCmd := &cobra.Command{
		Use:   "check -f door.yaml",
		Short: "Validate and lint definitions",
		Run:   check(ctx),
	}
	cli.AddFileFlags(checkCmd)
	rootCmd.AddCommand(checkCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func exitErr(err error) {
	if err == nil {
		return
	}
	fmt.Println("Error:", err)
	os.Exit(1)
}

func params(cmd *cobra.Command, args []string) cli.Params {
	p, err := cli.ParseParams(cmd, args)
	exitErr(err)

	return p
}

func genCode(ctx context.Context) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		p := params(cmd, args)
		opts := &generator.Opts{Package: p.Package}

		eg, _ := errgroup.WithContext(ctx)
		for _, file := range p.Files {
			eg.Go(func() error {
				out, err := generator.Generate(file, p.Out, opts, p.Force)
				if err != nil {
					return err
				}
				fmt.Printf("Generated %s\n", out)

				return nil
			})
		}
		exitErr(eg.Wait())
	}
}

// render returns a diagram of a single definition file.
func render(file string, p cli.Params, mermaid bool) (string, error) {
	m, err := spec.LoadValid(file)
	if err != nil {
		return "", err
	}
	if mermaid {
		return visualizer.Mermaid(m), nil
	}

	return visualizer.Dotfile(m, p.Mode), nil
}

// renderAll renders all the files in parallel and writes the diagrams in
// order.
func renderAll(ctx context.Context, p cli.Params, mermaid bool) error {
	diagrams := make([]string, len(p.Files))
	eg, _ := errgroup.WithContext(ctx)
	for i, file := range p.Files {
		eg.Go(func() error {
			var err error
			diagrams[i], err = render(file, p, mermaid)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	return output(p.Out, strings.Join(diagrams, "\n"))
}

func output(path, content string) error {
	if path == "" {
		fmt.Print(content)
		return nil
	}

	return os.WriteFile(path, []byte(content), 0o666)
}

func genDiagram(
	ctx context.Context, mermaid bool,
) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		p := params(cmd, args)
		exitErr(renderAll(ctx, p, mermaid))
		if !p.Watch {
			return
		}

		// single writer for re-renders
		var mx sync.Mutex
		err := watch(ctx, p.Files, func(file string) {
			mx.Lock()
			defer mx.Unlock()

			if err := renderAll(ctx, p, mermaid); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				return
			}
			if p.Out != "" {
				fmt.Fprintf(os.Stderr, "Rendered %s (%s changed)\n", p.Out, file)
			}
		})
		if !errors.Is(err, context.Canceled) {
			exitErr(err)
		}
	}
}

// check validates and lints every file. Invalid files list all their issues.
func check(ctx context.Context) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		p := params(cmd, args)

		reports := make([]string, len(p.Files))
		invalid := make([]bool, len(p.Files))
		eg, _ := errgroup.WithContext(ctx)
		for i, file := range p.Files {
			eg.Go(func() error {
				reports[i], invalid[i] = checkFile(file)
				return nil
			})
		}
		_ = eg.Wait()

		fmt.Print(strings.Join(reports, ""))
		for _, inv := range invalid {
			if inv {
				os.Exit(1)
			}
		}
	}
}

func checkFile(file string) (string, bool) {
	var b strings.Builder

	m, err := spec.Load(file)
	if err != nil {
		fmt.Fprintf(&b, "%s: %s\n", file, err)
		return b.String(), true
	}
	if err := spec.Validate(m); err != nil {
		for _, e := range spec.Errors(err) {
			fmt.Fprintf(&b, "%s: error: %s\n", file, e)
		}
		return b.String(), true
	}

	warns, err := graph.Lint(m)
	if err != nil {
		fmt.Fprintf(&b, "%s: %s\n", file, err)
		return b.String(), true
	}
	for _, w := range warns {
		fmt.Fprintf(&b, "%s: warning: %s\n", file, w)
	}
	fmt.Fprintf(&b, "%s: OK\n", file)

	return b.String(), false
}
