package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	cryptodocs "github.com/ishan-surana/cryptosystems-docs"
	"github.com/urfave/cli/v2"
)

func main() {
	confFlag := &cli.PathFlag{
		Name:  "conf",
		Usage: "configuration file (JSON or YAML), defaults to the built-in cryptosystems configuration",
	}

	app := cli.App{
		Name:  "cryptosystems-docs",
		Usage: "Build the cryptosystems documentation",
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Render the documentation",
				Action: buildAction,
				Flags: []cli.Flag{
					confFlag,
					&cli.PathFlag{
						Name:  "source",
						Usage: "documentation source directory",
						Value: "docs",
					},
					&cli.PathFlag{
						Name:     "out",
						Usage:    "output directory for documentation",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "output format: html or epub",
						Value: cryptodocs.FormatHTML,
					},
					&cli.StringFlag{
						Name:  "serve",
						Usage: "Serve documentation for local preview: -serve :8080",
					},
				},
			},
			{
				Name:   "validate",
				Usage:  "Check the configuration",
				Action: validateAction,
				Flags: []cli.Flag{
					confFlag,
					&cli.PathFlag{
						Name:  "source",
						Usage: "documentation source directory",
						Value: "docs",
					},
				},
			},
			{
				Name:      "get",
				Usage:     "Print the value of a configuration option as JSON",
				ArgsUsage: "<option>",
				Action:    getAction,
				Flags:     []cli.Flag{confFlag},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		TUIPrintln("error: %v", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (cryptodocs.Config, error) {
	path := c.Path("conf")
	if path == "" {
		return cryptodocs.Cryptosystems(), nil
	}

	return cryptodocs.LoadConfig(path)
}

func buildAction(c *cli.Context) error {
	var (
		sourceDir = c.Path("source")
		outDir    = c.Path("out")
		format    = c.String("format")
		serveAddr = c.String("serve")
	)

	conf, err := loadConfig(c)
	if err != nil {
		return err
	}

	start := time.Now()

	err = os.RemoveAll(outDir)
	if err != nil {
		return fmt.Errorf("clear output directory: %w", err)
	}

	err = os.MkdirAll(outDir, 0o770)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	err = cryptodocs.Build(c.Context, conf, cryptodocs.BuildOptions{
		SourceDir: sourceDir,
		OutDir:    outDir,
		Format:    format,
	}, TUIPrintln)
	if err != nil {
		return fmt.Errorf("generate documentation: %w", err)
	}

	duration := time.Since(start)

	TUIPrintln("Generated documentation in %s", duration.String())

	if serveAddr != "" {
		TUIPrintln("Serving docs at %s", serveAddr)

		err := http.ListenAndServe(serveAddr,
			http.FileServerFS(os.DirFS(outDir)))
		if err != nil {
			return fmt.Errorf("serve static files: %w", err)
		}
	}

	return nil
}

func validateAction(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}

	b, err := cryptodocs.NewBuilder(conf, cryptodocs.BuildOptions{
		SourceDir: c.Path("source"),
		OutDir:    filepath.Join(c.Path("source"), "_build"),
	}, TUIPrintln)
	if err != nil {
		return err
	}

	TUIPrintln("Configuration is valid, extensions: %v", b.Extensions())

	return nil
}

func getAction(c *cli.Context) error {
	option := c.Args().First()
	if option == "" {
		return fmt.Errorf("missing option name, one of: %v", cryptodocs.Options())
	}

	if !slices.Contains(cryptodocs.Options(), option) {
		return fmt.Errorf("unknown option %q, one of: %v", option, cryptodocs.Options())
	}

	conf, err := loadConfig(c)
	if err != nil {
		return err
	}

	value := conf.Lookup(option)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	err = enc.Encode(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}

	return nil
}

func TUIPrintln(format string, a ...any) {
	_, err := fmt.Fprintf(os.Stderr, format, a...)
	if err != nil {
		println(err.Error())

		return
	}

	println()
}
