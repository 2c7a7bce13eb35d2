package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner shown when a reduction starts on
// a terminal.
func PrintBanner() {
	p := termenv.ColorProfile()
	// Using a subtle gradient-like color scheme (Sky/Teal)
	s1 := termenv.String("  ___   ____      _      ____         ____   ____  ").Foreground(p.Color("#60a5fa"))
	s2 := termenv.String(" / _ \\ |  _ \\    / \\    / ___|       |  _ \\ |  _ \\ ").Foreground(p.Color("#38bdf8"))
	s3 := termenv.String("| | | || |_) |  / _ \\  | |     _____ | | | || |_) |").Foreground(p.Color("#22d3ee"))
	s4 := termenv.String("| |_| ||  _ <  / ___ \\ | |___ |_____|| |_| ||  _ < ").Foreground(p.Color("#2dd4bf"))
	s5 := termenv.String(" \\___/ |_| \\_\\/_/   \\_\\ \\____|       |____/ |_| \\_\\").Foreground(p.Color("#34d399"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println()
}
