package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tebeka/atexit"
	"golang.org/x/term"

	jvmyield "github.com/wippyai/jvm-yield"
	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/weave"
)

func main() {
	var (
		inFile      = flag.String("in", "", "Path to the input .class file")
		outFile     = flag.String("out", "", "Path to write the woven class (default: overwrite -in)")
		configFile  = flag.String("config", "", "YAML configuration file")
		methods     = flag.String("method", "", "Methods to weave (comma-separated patterns, e.g. com/acme/Gen.next,step*)")
		onError     = flag.String("on-error", "", "What to do with a method that cannot be woven: skip or abort")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
		strict      = flag.Bool("strict", false, "Reject regions closed at a nonzero stack height")
		list        = flag.Bool("list", false, "Print the woven listing instead of writing a class file")
		original    = flag.Bool("original", false, "With -list, print the input listing without weaving")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *inFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: weave -in <File.class> [-out <File.class>] [-config weave.yaml] [-method pattern,...]")
		fmt.Fprintln(os.Stderr, "       weave -in <File.class> -list [-original]")
		fmt.Fprintln(os.Stderr, "       weave -in <File.class> -i  (interactive mode)")
		atexit.Exit(1)
	}

	fc, err := loadConfig(*configFile)
	if err != nil {
		fail(err)
	}
	if *methods != "" {
		fc.Methods = strings.Split(*methods, ",")
	}
	if *onError != "" {
		fc.OnError = *onError
	}
	if *logLevel != "" {
		fc.LogLevel = *logLevel
	}
	if *strict {
		fc.StrictClose = true
	}

	logger, err := newLogger(fc.LogLevel)
	if err != nil {
		fail(err)
	}
	// the TUI owns the terminal; skipped methods show up in its list instead
	if !*interactive {
		weave.SetLogger(logger)
	}
	atexit.Register(func() { _ = logger.Sync() })

	cfg, err := fc.transformConfig()
	if err != nil {
		fail(err)
	}

	if *interactive {
		if err := runInteractive(*inFile, cfg); err != nil {
			fail(err)
		}
		atexit.Exit(0)
	}

	if err := run(*inFile, *outFile, cfg, *list, *original); err != nil {
		fail(err)
	}
	atexit.Exit(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	atexit.Exit(1)
}

func run(inFile, outFile string, cfg jvmyield.Config, listOnly, original bool) error {
	data, err := os.ReadFile(inFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	c, err := classfile.ParseClass(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", inFile, err)
	}
	styled := term.IsTerminal(int(os.Stdout.Fd()))

	if listOnly && original {
		fmt.Print(renderClass(c, styled))
		return nil
	}

	report, err := jvmyield.TransformClass(c, cfg)
	if err != nil {
		return err
	}
	if report.Skipped != nil {
		fmt.Fprintln(os.Stderr, report.Skipped.Error())
	}

	if listOnly {
		fmt.Print(renderClass(c, styled))
		return nil
	}

	fmt.Printf("Class: %s\n", c.Name)
	for _, r := range report.Woven {
		fmt.Printf("  woven %s: %d states, %d slots, max stack %d\n", r.Method, r.States, len(r.Slots), r.MaxStack)
	}
	if len(report.Woven) == 0 {
		fmt.Println("  no generator methods found")
		return nil
	}

	out, err := c.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if outFile == "" {
		outFile = inFile
	}
	if err := os.WriteFile(outFile, out, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", outFile, len(out))
	return nil
}
