// Package listener owns the interactive terminal: a readline prompt that
// async pipeline output can print above without clobbering the input line.
package listener

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

var rl *readline.Instance
var mu sync.Mutex
var holdAsync bool
var heldLines []string

func Init() error {
	var err error
	rl, err = readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "",
		EOFPrompt:       "",
	})
	return err
}

func Close() {
	if rl != nil {
		_ = rl.Close()
	}
}

// BeginInteractive holds async output until EndInteractive, so a
// confirmation dialog is not interleaved with pipeline chatter.
func BeginInteractive() {
	mu.Lock()
	holdAsync = true
	mu.Unlock()
}

func EndInteractive() {
	mu.Lock()
	defer mu.Unlock()
	holdAsync = false
	for _, s := range heldLines {
		writeAbove(s)
	}
	heldLines = nil
	if rl != nil {
		rl.Refresh()
	}
}

func writeAbove(s string) {
	if rl == nil {
		fmt.Println(s)
		return
	}
	_, _ = rl.Write([]byte("\r\n" + s + "\r\n"))
}

func PrintAbove(s string) {
	mu.Lock()
	defer mu.Unlock()
	writeAbove(s)
	if rl != nil {
		rl.Refresh()
	}
}

func GetInput() string {
	line, err := rl.Readline()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func GetConfirmation(prompt string) string {
	mu.Lock()
	old := rl.Config.Prompt
	rl.SetPrompt(prompt)
	mu.Unlock()

	line, err := rl.Readline()
	if err != nil {
		line = ""
	}
	ans := strings.TrimSpace(strings.ToLower(line))

	mu.Lock()
	rl.SetPrompt(old)
	mu.Unlock()
	return ans
}

// AsyncPrintln prints above the prompt, or buffers while a dialog is open.
func AsyncPrintln(s string) {
	mu.Lock()
	defer mu.Unlock()
	if holdAsync {
		heldLines = append(heldLines, s)
		return
	}
	writeAbove(s)
	if rl != nil {
		rl.Refresh()
	}
}

func AskYesNo(question string) bool {
	BeginInteractive()
	defer EndInteractive()

	PrintAbove(question + " [y/n]")

	for {
		switch GetConfirmation("> ") {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		PrintAbove("Please answer y/n.")
	}
}
