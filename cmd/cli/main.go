package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nickyhof/DuckServe/core"
	"github.com/nickyhof/DuckServe/sql"
)

// Version is set at build time via -ldflags
var Version = "dev"

// CLI holds the CLI state
type CLI struct {
	client  *Client
	out     io.Writer
	format  core.Format
	persist bool
	history *statementHistory
}

var (
	flagURL     string
	flagFormat  string
	flagCommand string
	flagPersist bool
	flagTimeout int

	rootCmd = &cobra.Command{
		Use:           "duckcli",
		Short:         "Interactive client for a DuckServe server",
		RunE:          runCLI,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.Flags().StringVar(&flagURL, "url", "ws://localhost:3000", "Server WebSocket URL")
	rootCmd.Flags().StringVar(&flagFormat, "format", "arrow", "Result format (arrow or json)")
	rootCmd.Flags().StringVarP(&flagCommand, "command", "c", "", "Run the given SQL and exit")
	rootCmd.Flags().BoolVar(&flagPersist, "persist", false, "Ask the server to cache query results")
	rootCmd.Flags().IntVar(&flagTimeout, "timeout", 60, "Seconds to wait for a reply")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func runCLI(*cobra.Command, []string) error {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}

	client, err := Dial(flagURL, time.Duration(flagTimeout)*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()

	cli := &CLI{
		client:  client,
		out:     os.Stdout,
		format:  format,
		persist: flagPersist,
		history: newStatementHistory(historyPath()),
	}

	if flagCommand != "" {
		for _, stmt := range splitStatements(flagCommand) {
			if err := cli.execute(stmt); err != nil {
				return err
			}
		}
		return nil
	}

	printBanner(flagURL)
	if err := cli.history.Load(); err != nil {
		pterm.Warning.Printfln("Could not read history: %v", err)
	}
	cli.run(os.Stdin)
	return cli.history.Save()
}

func parseFormat(s string) (core.Format, error) {
	format, ok := core.FormatFromExtension(strings.ToLower(s))
	if !ok {
		return 0, fmt.Errorf("unknown format %q (expected arrow or json)", s)
	}
	return format, nil
}

func printBanner(url string) {
	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprintf("DuckServe CLI v%s", Version)).
		WithPadding(1).
		Println("Connected to " + url)
	pterm.Println("Type .help for commands, .quit to exit")
	pterm.Println()
}

func (cli *CLI) run(in io.Reader) {
	reader := bufio.NewReader(in)
	var multiLineBuffer strings.Builder

	for {
		fmt.Fprint(cli.out, cli.getPrompt(multiLineBuffer.Len() > 0))

		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(cli.out, pterm.FgGreen.Sprint("\nGoodbye!"))
			return
		}

		input = strings.TrimSuffix(input, "\n")
		input = strings.TrimSuffix(input, "\r")

		if strings.TrimSpace(input) == "" {
			continue
		}

		if multiLineBuffer.Len() == 0 && strings.HasPrefix(input, ".") {
			if !cli.handleCommand(input) {
				return
			}
			continue
		}

		// accumulate until the statement ends with a semicolon
		multiLineBuffer.WriteString(input)
		trimmed := strings.TrimSpace(multiLineBuffer.String())
		if !strings.HasSuffix(trimmed, ";") {
			multiLineBuffer.WriteString(" ")
			continue
		}
		multiLineBuffer.Reset()

		stmt := strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
		if stmt == "" {
			continue
		}

		cli.history.Add(stmt + ";")
		if err := cli.execute(stmt); err != nil {
			cli.printError(err)
		}
	}
}

func (cli *CLI) getPrompt(multiLine bool) string {
	if multiLine {
		return pterm.FgCyan.Sprint("   ...> ")
	}
	return pterm.FgCyan.Sprint("duckserve> ")
}

// statementPattern matches SQL that produces no result set.
var statementPattern = regexp.MustCompile(`(?i)^\s*(CREATE|DROP|ALTER|INSERT|UPDATE|DELETE|COPY|SET|RESET|INSTALL|LOAD|ATTACH|DETACH|USE|CHECKPOINT|BEGIN|COMMIT|ROLLBACK)\b`)

// execute sends stmt as exec when it produces no rows, otherwise as a query
// in the current format.
func (cli *CLI) execute(stmt string) error {
	if statementPattern.MatchString(stmt) || sql.Classify(stmt).Kind == sql.PragmaStatement {
		return cli.exec(stmt)
	}
	return cli.query(stmt)
}

func (cli *CLI) exec(stmt string) error {
	start := time.Now()
	if _, err := cli.client.Do(core.Command{Type: core.ExecCommand, SQL: stmt}); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, pterm.FgGreen.Sprintf("✓ OK (%s)", time.Since(start).Round(time.Millisecond)))
	return nil
}

func (cli *CLI) query(stmt string) error {
	cmdType := core.ArrowCommand
	if cli.format == core.JSONFormat {
		cmdType = core.JSONCommand
	}

	start := time.Now()
	reply, err := cli.client.Do(core.Command{Type: cmdType, SQL: stmt, Persist: cli.persist})
	if err != nil {
		return err
	}
	elapsed := time.Since(start).Round(time.Millisecond)

	if !reply.Binary {
		renderJSON(cli.out, reply.Payload)
		return nil
	}

	rows, err := renderArrow(cli.out, reply.Payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "(%d rows, %s)\n", rows, elapsed)
	return nil
}

func (cli *CLI) createBundle(name, script string) error {
	statements := splitStatements(script)
	if len(statements) == 0 {
		return fmt.Errorf("no queries to bundle")
	}

	queries := make([]core.QueryDescriptor, len(statements))
	for i, stmt := range statements {
		queries[i] = core.QueryDescriptor{SQL: stmt}
	}

	if _, err := cli.client.Do(core.Command{Type: core.CreateBundleCommand, Name: name, Queries: queries}); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, pterm.FgGreen.Sprintf("✓ Created bundle %s (%d queries)", name, len(queries)))
	return nil
}

func (cli *CLI) loadBundle(name string) error {
	if _, err := cli.client.Do(core.Command{Type: core.LoadBundleCommand, Name: name}); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, pterm.FgGreen.Sprintf("✓ Loaded bundle %s", name))
	return nil
}

func (cli *CLI) printError(err error) {
	fmt.Fprintln(cli.out, pterm.FgRed.Sprintf("✗ Error: %v", err))
}

// handleCommand runs a dot command. It returns false when the CLI should exit.
func (cli *CLI) handleCommand(input string) bool {
	input = strings.TrimSpace(input)
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return true
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		fmt.Fprintln(cli.out, pterm.FgGreen.Sprint("Goodbye!"))
		return false

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".format":
		if len(parts) < 2 {
			fmt.Fprintf(cli.out, "Current format: %s\n", cli.format)
			break
		}
		format, err := parseFormat(parts[1])
		if err != nil {
			cli.printError(err)
			break
		}
		cli.format = format
		fmt.Fprintln(cli.out, pterm.FgGreen.Sprintf("✓ Format: %s", format))

	case ".persist":
		if len(parts) > 1 {
			cli.persist = strings.EqualFold(parts[1], "on")
		}
		fmt.Fprintf(cli.out, "Persist: %t\n", cli.persist)

	case ".exec":
		stmt := strings.TrimSpace(input[len(parts[0]):])
		if stmt == "" {
			cli.printError(fmt.Errorf("usage: .exec <sql>"))
			break
		}
		if err := cli.exec(strings.TrimSuffix(stmt, ";")); err != nil {
			cli.printError(err)
		}

	case ".bundle":
		if len(parts) < 3 {
			cli.printError(fmt.Errorf("usage: .bundle <name> <sql>; <sql>; ..."))
			break
		}
		rest := strings.TrimSpace(input[len(parts[0]):])
		script := strings.TrimSpace(rest[len(parts[1]):])
		if err := cli.createBundle(parts[1], script); err != nil {
			cli.printError(err)
		}

	case ".load":
		name := core.DefaultBundleName
		if len(parts) > 1 {
			name = parts[1]
		}
		if err := cli.loadBundle(name); err != nil {
			cli.printError(err)
		}

	case ".import":
		if len(parts) < 2 {
			cli.printError(fmt.Errorf("usage: .import <file.sql>"))
			break
		}
		if err := cli.importFile(parts[1]); err != nil {
			cli.printError(err)
		}

	case ".clear", ".cls":
		fmt.Fprint(cli.out, "\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".version":
		fmt.Fprintf(cli.out, "DuckServe CLI version %s\n", Version)

	default:
		cli.printError(fmt.Errorf("unknown command: %s (type .help for commands)", parts[0]))
	}

	return true
}

func (cli *CLI) printHelp() {
	bold := pterm.NewStyle(pterm.FgCyan, pterm.Bold)
	fmt.Fprintln(cli.out)
	fmt.Fprintln(cli.out, bold.Sprint("Special Commands:"))
	fmt.Fprintln(cli.out, "  .help, .h              Show this help message")
	fmt.Fprintln(cli.out, "  .quit, .exit           Exit the CLI")
	fmt.Fprintln(cli.out, "  .format [arrow|json]   Show or set the result format")
	fmt.Fprintln(cli.out, "  .persist [on|off]      Show or set result caching on the server")
	fmt.Fprintln(cli.out, "  .exec <sql>            Run a statement without fetching results")
	fmt.Fprintln(cli.out, "  .bundle <name> <sql>;  Create a bundle from ;-separated queries")
	fmt.Fprintln(cli.out, "  .load [name]           Load a bundle (default: default)")
	fmt.Fprintln(cli.out, "  .import <file>         Run SQL statements from a file")
	fmt.Fprintln(cli.out, "  .history               Show command history")
	fmt.Fprintln(cli.out, "  .clear                 Clear the screen")
	fmt.Fprintln(cli.out, "  .version               Show version info")
	fmt.Fprintln(cli.out)
	fmt.Fprintln(cli.out, "SQL statements end with ';' and may span several lines.")
	fmt.Fprintln(cli.out)
}

func (cli *CLI) printHistory() {
	first, entries := cli.history.Recent(historyShown)
	if len(entries) == 0 {
		fmt.Fprintln(cli.out, "No command history")
		return
	}
	for i, entry := range entries {
		fmt.Fprintf(cli.out, "  %3d  %s\n", first+i, entry)
	}
}

// importFile sends every statement of a SQL file to the server.
func (cli *CLI) importFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	successCount := 0
	errorCount := 0
	for i, stmt := range splitStatements(string(data)) {
		if err := cli.execute(stmt); err != nil {
			fmt.Fprintln(cli.out, pterm.FgRed.Sprintf("[%d] ✗ %s", i+1, abbreviate(stmt, 50)))
			fmt.Fprintf(cli.out, "      Error: %v\n", err)
			if !IsServerError(err) {
				return err
			}
			errorCount++
			continue
		}
		successCount++
	}

	fmt.Fprintln(cli.out, pterm.FgGreen.Sprintf("\n✓ Import complete: %d succeeded, %d failed", successCount, errorCount))
	return nil
}

// splitStatements splits SQL content into individual statements
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	stringChar := byte(0)

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if (ch == '\'' || ch == '"') && (i == 0 || content[i-1] != '\\') {
			if !inString {
				inString = true
				stringChar = ch
			} else if ch == stringChar {
				inString = false
			}
		}

		// skip line comments
		if !inString && ch == '-' && i+1 < len(content) && content[i+1] == '-' {
			for i < len(content) && content[i] != '\n' {
				i++
			}
			continue
		}

		if !inString && ch == ';' {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	stmt := strings.TrimSpace(current.String())
	if stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}
