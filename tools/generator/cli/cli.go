// Package cli declares flags of the mg-gen commands.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pancsta/machinegen/tools/visualizer"
)

const (
	pVersion      = "version"
	pFile         = "file"
	pFileShort    = "f"
	pOut          = "out"
	pOutShort     = "o"
	pPackage      = "package"
	pPackageShort = "p"
	pMode         = "mode"
	pModeShort    = "m"
	pWatch        = "watch"
	pWatchShort   = "w"
	pForce        = "force"
)

// RootParams are params for the root command.
type RootParams struct {
	// Version - print version
	Version bool
}

func AddRootFlags(cmd *cobra.Command) {
	cmd.Flags().Bool(pVersion, false, "Print version and exit")
}

func ParseRootParams(cmd *cobra.Command, _ []string) RootParams {
	version, _ := cmd.Flags().GetBool(pVersion)

	return RootParams{
		Version: version,
	}
}

// ///// ///// /////

// ///// COMMANDS

// ///// ///// /////

// Params are params shared by all the file commands.
type Params struct {
	// Files - definition files (YAML or JSON)
	Files []string
	// Out - output file, only with a single definition. Default: next to the
	// definition for code, stdout for diagrams.
	Out string
	// Package - package name of the generated code. Default: lowercase
	// machine name.
	Package string
	// Mode - rendering mode of defaults in DOT diagrams: show, hide, pretty
	Mode visualizer.Mode
	// Watch - re-render on every change of the definition
	Watch bool
	// Force - overwrite existing files
	Force bool
}

// AddFileFlags adds the -f flag, required by every file command.
func AddFileFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceP(pFile, pFileShort, nil,
		"Definition files (YAML or JSON). Eg: door.yaml,lock.yaml")
	_ = cmd.MarkFlagRequired(pFile)
}

func addOut(f *pflag.FlagSet, def string) {
	f.StringP(pOut, pOutShort, "",
		"Output file, for a single definition. Default: "+def)
}

func AddCodeFlags(cmd *cobra.Command) {
	AddFileFlags(cmd)
	f := cmd.Flags()
	addOut(f, "next to the definition")
	f.StringP(pPackage, pPackageShort, "",
		"Package name. Default: lowercase machine name")
	f.Bool(pForce, false, "Override the output file (if any)")
}

func AddDotFlags(cmd *cobra.Command) {
	AddFileFlags(cmd)
	f := cmd.Flags()
	addOut(f, "stdout")
	f.StringP(pMode, pModeShort, visualizer.DefaultMode.String(),
		"Rendering of defaults: show, hide, pretty")
	f.BoolP(pWatch, pWatchShort, false,
		"Re-render on every change of the definition")
}

func AddMermaidFlags(cmd *cobra.Command) {
	AddFileFlags(cmd)
	addOut(cmd.Flags(), "stdout")
}

// ParseParams reads the flags of a file command. Flags not added to cmd are
// left empty.
func ParseParams(cmd *cobra.Command, _ []string) (Params, error) {
	f := cmd.Flags()
	files, _ := f.GetStringSlice(pFile)
	out, _ := f.GetString(pOut)
	pkg, _ := f.GetString(pPackage)
	mode, _ := f.GetString(pMode)
	watch, _ := f.GetBool(pWatch)
	force, _ := f.GetBool(pForce)

	p := Params{
		Out:     strings.TrimSpace(out),
		Package: strings.TrimSpace(pkg),
		Watch:   watch,
		Force:   force,
	}
	for _, file := range files {
		if file = strings.TrimSpace(file); file != "" {
			p.Files = append(p.Files, file)
		}
	}

	if len(p.Files) == 0 {
		return p, fmt.Errorf("--%s required", pFile)
	}
	if p.Out != "" && len(p.Files) > 1 {
		return p, fmt.Errorf("--%s works only with a single --%s", pOut, pFile)
	}
	if strings.Contains(p.Package, " ") {
		return p, fmt.Errorf("--%s invalid: %q", pPackage, p.Package)
	}
	var err error
	if p.Mode, err = visualizer.ParseMode(mode); err != nil {
		return p, fmt.Errorf("--%s: %w", pMode, err)
	}

	return p, nil
}
