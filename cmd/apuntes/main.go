// Package main is the apuntes CLI entry point.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/apuntes/internal/config"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/apuntes/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// A missing default file yields the built-in defaults and an empty resolved path.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "upload":
		runUpload()
	case "list":
		runList()
	case "clear":
		runClear()
	case "parse":
		runParse()
	case "text":
		runText()
	case "notes":
		runNotes()
	case "quiz":
		runQuiz()
	case "correct":
		runCorrect()
	case "search":
		runSearch()
	case "key":
		runKey()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("apuntes version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// fail prints a message to stderr and exits with status 1.
func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`apuntes - Study notes and quizzes from slides and PDFs

Usage:
  apuntes server [flags]                        Start the HTTP server (and inbox watcher)
  apuntes upload [flags] <kind> <files...>      Store .pptx or .pdf files
  apuntes list [flags] <kind>                   List stored uploads
  apuntes clear [flags] <kind>                  Delete all uploads and extracted text of a kind
  apuntes parse [flags] <kind>                  Extract text from every stored upload of a kind
  apuntes text [flags] <kind>                   Print the extracted text
  apuntes notes [flags] <kind>                  Generate study notes (-pdf to export)
  apuntes quiz [flags] <kind>                   Generate open questions (-n count)
  apuntes correct -quiz <id> -q <n> <answer>    Get feedback on an answer
  apuntes search [flags] <query>                Keyword search over extracted text
  apuntes key <set|clear|show> [key]            Manage the stored OpenAI API key
  apuntes status [flags]                        Show uploads, batches and storage usage
  apuntes init [flags]                          Write a default config file
  apuntes version                               Show version
  apuntes help                                  Show this help

Kinds:
  slides     (aliases: pptx, ppt)
  documents  (aliases: pdf, docs)

Common Flags:
  --config string    Config file path (default: /usr/local/etc/apuntes/config.yaml, or ./config.yaml when present)
  --debug            Enable debug logging
  --output string    Output format: text or json (list, parse, quiz, search, status)

Notes Flags:
  --pdf string       Write the notes as PDF to this file or directory

Quiz Flags:
  --n int            Number of questions, 1-20 (default: 3)

Search Flags:
  --server string    Server URL; empty searches the local stores directly
  --limit int        Number of results (default from config, or 10)
  --kind string      Restrict to slides or documents
  --fuzzy            Enable fuzzy matching for typo tolerance

Examples:
  apuntes upload slides tema1.pptx tema2.pptx
  apuntes parse slides
  apuntes notes slides -pdf ~/Desktop
  apuntes quiz pdf -n 5
  apuntes correct -quiz 6f1c... -q 2 "La mitocondria produce energia"
  apuntes search fotosintesis
  apuntes key set sk-...`)
}
