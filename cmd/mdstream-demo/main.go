// Command mdstream-demo feeds a Markdown file (or stdin) into a mdstream.Stream
// in small simulated-network chunks and renders committed blocks through
// glamour as they land, with the in-progress block redrawn from its
// terminator-balanced preview on every tick. By default it runs a
// bubbletea program with a scrollable viewport pane; --plain switches to a
// raw-ANSI render loop (terminal.go/plain.go) for non-interactive output.
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	mdstream "github.com/Latias94/mdstream"
)

var (
	styleFlag    string
	minChunk     int
	maxChunk     int
	intervalMS   int
	widthFlag    int
	thinkingTags bool
	plainFlag    bool
)

func main() {
	root := &cobra.Command{
		Use:   "mdstream-demo [file]",
		Short: "Stream a Markdown file through mdstream and render it live",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
	}
	root.Flags().StringVar(&styleFlag, "style", "", "glamour style (auto, dark, light, notty, or a style name)")
	root.Flags().IntVar(&minChunk, "min-chunk", 1, "minimum bytes per simulated chunk")
	root.Flags().IntVar(&maxChunk, "max-chunk", 24, "maximum bytes per simulated chunk")
	root.Flags().IntVar(&intervalMS, "interval", 15, "milliseconds between chunks")
	root.Flags().IntVar(&widthFlag, "width", 0, "wrap width (0 = glamour's default width)")
	root.Flags().BoolVar(&thinkingTags, "thinking-tags", false, "treat <thinking>...</thinking> as an opaque boundary block")
	root.Flags().BoolVar(&plainFlag, "plain", false, "render with raw ANSI cursor control instead of the bubbletea alt-screen (for piping to a file or CI log)")

	if err := root.Execute(); err != nil {
		slog.Error("mdstream-demo exited with error", "error", err)
		os.Exit(1)
	}
}

func loadConfig() {
	viper.SetConfigName("mdstream-demo")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.config/mdstream")
	viper.AddConfigPath(".")
	viper.SetDefault("style", "auto")
	viper.SetDefault("min_chunk", 1)
	viper.SetDefault("max_chunk", 24)
	viper.SetDefault("interval_ms", 15)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("failed to read mdstream-demo config", "error", err)
		}
	}
}

func run(cmd *cobra.Command, args []string) error {
	loadConfig()
	if styleFlag == "" {
		styleFlag = viper.GetString("style")
	}

	var src []byte
	var err error
	if len(args) == 1 {
		src, err = os.ReadFile(args[0])
	} else {
		src, err = readAllStdin()
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	var streamOpts []mdstream.Option
	if thinkingTags {
		streamOpts = append(streamOpts, mdstream.WithBoundaryPlugin(mdstream.ThinkingTag()))
	}
	opts := mdstream.DefaultOptions()
	mdstream.ApplyOptions(&opts, streamOpts...)

	renderOpts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	switch styleFlag {
	case "", "auto":
	case "dark":
		renderOpts = []glamour.TermRendererOption{glamour.WithStandardStyle("dark")}
	case "light":
		renderOpts = []glamour.TermRendererOption{glamour.WithStandardStyle("light")}
	case "notty":
		renderOpts = []glamour.TermRendererOption{glamour.WithStandardStyle("notty")}
	default:
		renderOpts = []glamour.TermRendererOption{glamour.WithStylePath(styleFlag)}
	}
	if widthFlag > 0 {
		renderOpts = append(renderOpts, glamour.WithWordWrap(widthFlag))
	}
	tr, err := glamour.NewTermRenderer(renderOpts...)
	if err != nil {
		return fmt.Errorf("building renderer: %w", err)
	}

	if plainFlag {
		return runPlain(src, opts, tr, widthFlag, os.Stdout)
	}

	m := newModel(src, opts, tr)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func readAllStdin() ([]byte, error) {
	var b strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			b.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return []byte(b.String()), nil
}

type tickMsg time.Time

type model struct {
	remaining []byte
	stream    *mdstream.Stream
	renderer  *glamour.TermRenderer

	committed  strings.Builder
	pendingRaw string

	// viewport holds the scrollable committed+pending output pane, so a
	// transcript longer than the terminal can still be paged through
	// (arrow keys, pgup/pgdown) the way glow's pager does.
	viewport viewport.Model
	ready    bool

	done bool
	err  error
}

func newModel(src []byte, opts mdstream.Options, tr *glamour.TermRenderer) model {
	return model{remaining: src, stream: mdstream.New(opts), renderer: tr}
}

func (m model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(time.Duration(intervalMS)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-1)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 1
		}
		m.viewport.SetContent(m.paneContent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case tickMsg:
		if len(m.remaining) == 0 {
			if !m.done {
				u := m.stream.Finalize()
				m.applyUpdate(u)
				m.done = true
			}
			return m, nil
		}
		n := minChunk + rand.Intn(maxChunk-minChunk+1)
		if n > len(m.remaining) {
			n = len(m.remaining)
		}
		chunk := m.remaining[:n]
		m.remaining = m.remaining[n:]

		u := m.stream.Append(string(chunk))
		m.applyUpdate(u)
		return m, tick()
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) applyUpdate(u mdstream.Update) {
	for _, b := range u.Committed {
		rendered, err := m.renderer.Render(b.Raw)
		if err != nil {
			m.err = err
			continue
		}
		m.committed.WriteString(rendered)
	}
	if u.Pending != nil {
		m.pendingRaw = u.Pending.DisplayOrRaw()
	} else {
		m.pendingRaw = ""
	}
	if m.ready {
		m.viewport.SetContent(m.paneContent())
		m.viewport.GotoBottom()
	}
}

// paneContent renders the committed transcript plus the in-progress pending
// block into the single string the viewport scrolls over.
func (m model) paneContent() string {
	var b strings.Builder
	b.WriteString(m.committed.String())
	if m.pendingRaw != "" {
		if rendered, err := m.renderer.Render(m.pendingRaw); err == nil {
			b.WriteString(rendered)
		}
	}
	if m.err != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) View() string {
	if !m.ready {
		return "initializing...\n"
	}
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if !m.done {
		b.WriteString(lipgloss.NewStyle().Faint(true).Render("-- streaming, q to quit --"))
	} else {
		b.WriteString(lipgloss.NewStyle().Faint(true).Render("-- done, q to quit --"))
	}
	return b.String()
}
