// Package main provides a CLI for inspecting, converting, and exporting
// character sheet save files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
	"github.com/cory-johannsen/aionia-sheet/internal/config"
	"github.com/cory-johannsen/aionia-sheet/internal/export"
	"github.com/cory-johannsen/aionia-sheet/internal/game/character"
	"github.com/cory-johannsen/aionia-sheet/internal/game/dice"
	"github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"
	"github.com/cory-johannsen/aionia-sheet/internal/sheetfile"
	"github.com/cory-johannsen/aionia-sheet/internal/storage/postgres"
)

const usage = `usage: sheetctl [-rules <file>] <command> [flags] <args>

commands:
  summary <file>                      print name, species, and derived values
  export  [-json] [-url u] <file>     print the cocofolia chat-tool export
  print   [-template t] [-o out] <file>
                                      render the printable HTML sheet
  convert [-o out] <file>             normalize and re-encode a save file
  roll    [-skill id [-expert e]] [<file>|<expr>]
                                      roll a skill check of a sheet, or a dice expression
  local   [-config c] list | get <id> [-o out]
                                      read sheets kept in local storage
`

var errUsage = errors.New("bad usage")

// cli holds the collaborators of one invocation.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	src    dice.Source
	tables *ruleset.Tables
	codec  *sheetfile.Codec
}

func main() {
	c := &cli{stdout: os.Stdout, stderr: os.Stderr, src: dice.NewCryptoSource()}
	if err := c.run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) run(args []string) error {
	global := flag.NewFlagSet("sheetctl", flag.ContinueOnError)
	global.SetOutput(c.stderr)
	rulesPath := global.String("rules", "", "rule-table YAML file; empty uses the embedded tables")
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		return errUsage
	}

	c.tables = ruleset.Default()
	if *rulesPath != "" {
		t, err := ruleset.LoadFile(*rulesPath)
		if err != nil {
			return err
		}
		c.tables = t
	}
	c.codec = sheetfile.NewCodec(c.tables)

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "summary":
		return c.summary(rest)
	case "export":
		return c.export(rest)
	case "print":
		return c.print(rest)
	case "convert":
		return c.convert(rest)
	case "roll":
		return c.roll(rest)
	case "local":
		return c.local(rest)
	default:
		fmt.Fprintf(c.stderr, "unknown command %q\n", cmd)
		return errUsage
	}
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// load reads and decodes the single positional save-file argument.
func (c *cli) load(fs *flag.FlagSet) (*character.Record, string, error) {
	if fs.NArg() != 1 {
		return nil, "", errUsage
	}
	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	r, err := c.codec.Decode(data)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return r, path, nil
}

func (c *cli) summary(args []string) error {
	fs := c.flags("summary")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	r, _, err := c.load(fs)
	if err != nil {
		return err
	}
	d := character.Derive(r, c.tables)
	name := r.Character.Name
	if strings.TrimSpace(name) == "" {
		name = "(無名)"
	}
	fmt.Fprintf(c.stdout, "名前: %s\n", name)
	if r.Character.PlayerName != "" {
		fmt.Fprintf(c.stdout, "プレイヤー: %s\n", r.Character.PlayerName)
	}
	fmt.Fprintf(c.stdout, "種族: %s\n", export.SpeciesName(r.Character, c.tables))
	fmt.Fprintf(c.stdout, "経験点: %d / %d (残り %d)\n", d.CurrentExperience, d.MaxExperience, d.RemainingExperience)
	fmt.Fprintf(c.stdout, "傷痕: %s\n", formatNumber(d.Scar))
	fmt.Fprintf(c.stdout, "重量: %s\n", formatNumber(d.Weight))

	checked := 0
	for _, s := range r.Skills {
		if s.Checked {
			checked++
		}
	}
	fmt.Fprintf(c.stdout, "技能: %d / 特技: %d / 履歴: %d / 画像: %d\n",
		checked, len(r.SpecialSkills), len(r.Histories), len(r.Character.Images))
	return nil
}

func formatNumber(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}

func (c *cli) export(args []string) error {
	fs := c.flags("export")
	asJSON := fs.Bool("json", false, "print the clipboard JSON piece instead of text")
	externalURL := fs.String("url", "", "external URL embedded in the JSON piece")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	r, _, err := c.load(fs)
	if err != nil {
		return err
	}
	e := export.Cocofolia(r, c.tables)
	if !*asJSON {
		fmt.Fprintln(c.stdout, e.Text())
		return nil
	}
	b, err := e.ClipboardJSON(r, character.Derive(r, c.tables), *externalURL)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, string(b))
	return nil
}

// write sends data to path, or to stdout when path is empty or "-".
func (c *cli) write(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := c.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(c.stderr, "wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func (c *cli) print(args []string) error {
	fs := c.flags("print")
	tmpl := fs.String("template", "", "HTML print template; empty uses the embedded one")
	out := fs.String("o", "", "output file; empty writes to stdout")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	r, _, err := c.load(fs)
	if err != nil {
		return err
	}
	p, err := export.LoadPrinter(*tmpl)
	if err != nil {
		return err
	}
	return c.write(*out, []byte(p.Render(r, c.tables)))
}

// convert re-encodes a save file. The output form follows the record: a
// zip archive when it carries images, plain JSON otherwise.
func (c *cli) convert(args []string) error {
	fs := c.flags("convert")
	out := fs.String("o", "", "output file; empty derives the name from the character")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	r, path, err := c.load(fs)
	if err != nil {
		return err
	}
	p, err := c.codec.Encode(r)
	if err != nil {
		return err
	}
	target := *out
	if target == "" {
		target = filepath.Join(filepath.Dir(path), sheetfile.FileName(r, p.Kind))
	}
	return c.write(target, p.Data)
}

func (c *cli) roll(args []string) error {
	fs := c.flags("roll")
	skill := fs.String("skill", "", "skill id to check against a sheet")
	expert := fs.String("expert", "", "expert of the skill")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *skill == "" {
		if fs.NArg() != 1 {
			return errUsage
		}
		res, err := dice.RollExpr(fs.Arg(0), c.src)
		if err != nil {
			return apperr.Wrap(apperr.CodeValidationFailure, "parsing dice expression", err)
		}
		fmt.Fprintln(c.stdout, res)
		return nil
	}

	r, _, err := c.load(fs)
	if err != nil {
		return err
	}
	label, expr, err := export.SkillCheck(r, c.tables, *skill, *expert)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s %s\n", label, dice.Roll(expr, c.src))
	return nil
}

// local reads the sheets the server keeps in PostgreSQL.
func (c *cli) local(args []string) error {
	fs := c.flags("local")
	configPath := fs.String("config", "configs/dev.yaml", "path to configuration file")
	out := fs.String("o", "", "output file for get; empty derives the name from the sheet")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Database.Enabled {
		return apperr.New(apperr.CodeConfigMissing, "database is not enabled in "+*configPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	repo := postgres.NewSheetRepository(pool.DB())

	switch fs.Arg(0) {
	case "list":
		sheets, err := repo.List(ctx)
		if err != nil {
			return err
		}
		for _, s := range sheets {
			fmt.Fprintf(c.stdout, "%s\t%s\t%s\t%s\n", s.ID, s.Format, s.UpdatedAt.Format(time.RFC3339), s.Name)
		}
		return nil
	case "get":
		if fs.NArg() != 2 {
			return errUsage
		}
		s, err := repo.Get(ctx, fs.Arg(1))
		if err != nil {
			return err
		}
		target := *out
		if target == "" {
			rec := character.New(c.tables)
			rec.Character.Name = s.Name
			target = sheetfile.FileName(rec, sheetfile.Kind(s.Format))
		}
		return c.write(target, s.Payload)
	default:
		return errUsage
	}
}
