package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	fgethttp "github.com/tanq16/fget/internal/downloaders/http"
)

type FunctionOutput struct {
	ID          int
	URL         string
	Status      string
	Message     string
	StreamLines []string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	FunctionName string
	Error        error
	Time         time.Time
}

// Manager renders one status line per job, redrawn in place on a ticker.
type Manager struct {
	out           io.Writer
	interactive   bool
	outputs       map[int]*FunctionOutput
	mutex         sync.RWMutex
	numLines      int
	errors        []ErrorReport
	doneCh        chan struct{}
	displayTick   time.Duration
	functionCount int
	displayWg     sync.WaitGroup
}

func NewManager() *Manager {
	return NewManagerWithWriter(os.Stdout, isTerminal())
}

// NewManagerWithWriter renders to out. Without interactive, lines are never redrawn and
// only final job states and the summary are written.
func NewManagerWithWriter(out io.Writer, interactive bool) *Manager {
	return &Manager{
		out:         out,
		interactive: interactive,
		outputs:     make(map[int]*FunctionOutput),
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
	}
}

func (m *Manager) RegisterFunction(url string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.functionCount++
	m.outputs[m.functionCount] = &FunctionOutput{
		ID:          m.functionCount,
		URL:         url,
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
	}
	return m.functionCount
}

func (m *Manager) withOutput(id int, fn func(*FunctionOutput)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		fn(info)
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) SetMessage(id int, message string) {
	m.withOutput(id, func(info *FunctionOutput) { info.Message = message })
}

func (m *Manager) SetStatus(id int, status string) {
	m.withOutput(id, func(info *FunctionOutput) { info.Status = status })
}

func (m *Manager) GetStatus(id int) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if info, exists := m.outputs[id]; exists {
		return info.Status
	}
	return "unknown"
}

func (m *Manager) Complete(id int, message string) {
	m.finish(id, "success", message)
}

// Cancelled marks a job stopped by the user; it is neither a success nor an error.
func (m *Manager) Cancelled(id int, message string) {
	m.finish(id, "warning", message)
}

func (m *Manager) finish(id int, status, message string) {
	m.withOutput(id, func(info *FunctionOutput) {
		info.StreamLines = nil
		if message == "" {
			message = fmt.Sprintf("Finished %s", info.URL)
		}
		info.Message = message
		info.Complete = true
		info.Status = status
	})
	m.printFinal(id)
}

func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	if info, exists := m.outputs[id]; exists {
		info.Complete = true
		info.Status = "error"
		info.Error = err
		info.StreamLines = nil
		if info.Message == "" {
			info.Message = fmt.Sprintf("Failed %s", info.URL)
		}
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{FunctionName: info.URL, Error: err, Time: time.Now()})
	}
	m.mutex.Unlock()
	m.printFinal(id)
}

// UpdateProgress replaces the job's stream with a progress line for the snapshot.
func (m *Manager) UpdateProgress(id int, st fgethttp.Status) {
	m.withOutput(id, func(info *FunctionOutput) {
		if st.Filename != "" {
			info.Message = fmt.Sprintf("%s %s", st.State, st.Filename)
		}
		info.Status = "active"
		info.StreamLines = wrapText(StatusLine(st), 2+4)
	})
}

func (m *Manager) GetStatusIndicator(status string) string {
	switch status {
	case "success", "pass":
		return successStyle.Render(StyleSymbols["pass"])
	case "error", "fail":
		return errorStyle.Render(StyleSymbols["fail"])
	case "warning":
		return warningStyle.Render(StyleSymbols["warning"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func styleMessage(status, message string) string {
	switch status {
	case "success":
		return successStyle.Render(message)
	case "error":
		return errorStyle.Render(message)
	case "warning":
		return warningStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

func (m *Manager) sortFunctions() (active, pending, completed []*FunctionOutput) {
	var allFuncs []*FunctionOutput
	for _, info := range m.outputs {
		allFuncs = append(allFuncs, info)
	}
	sort.Slice(allFuncs, func(i, j int) bool {
		return allFuncs[i].ID < allFuncs[j].ID
	})
	for _, f := range allFuncs {
		if f.Complete {
			completed = append(completed, f)
		} else if f.Status == "pending" && f.Message == "" {
			pending = append(pending, f)
		} else {
			active = append(active, f)
		}
	}
	return active, pending, completed
}

func (m *Manager) renderFunction(b *strings.Builder, f *FunctionOutput, budget int) int {
	if budget <= 0 {
		return 0
	}
	elapsed := time.Since(f.StartTime)
	if f.Complete {
		elapsed = f.LastUpdated.Sub(f.StartTime)
	}
	message := f.Message
	if f.Status == "pending" && message == "" {
		message = "Waiting..."
	}
	fmt.Fprintf(b, "%s%s %s %s\n", strings.Repeat(" ", 2), m.GetStatusIndicator(f.Status), debugStyle.Render(elapsed.Round(time.Second).String()), styleMessage(f.Status, message))
	lines := 1
	indent := strings.Repeat(" ", 2+4)
	for _, line := range f.StreamLines {
		if lines >= budget {
			break
		}
		fmt.Fprintf(b, "%s%s\n", indent, streamStyle.Render(line))
		lines++
	}
	return lines
}

// render draws every job into a string and reports how many lines it used.
func (m *Manager) render(availableLines int) (string, int) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	active, pending, completed := m.sortFunctions()

	needed := 0
	for _, f := range append(active, pending...) {
		needed += 1 + len(f.StreamLines)
	}
	if maxCompleted := max(availableLines-needed, 0); len(completed) > maxCompleted {
		completed = completed[len(completed)-maxCompleted:]
	}

	var b strings.Builder
	lineCount := 0
	for _, group := range [][]*FunctionOutput{active, pending, completed} {
		for _, f := range group {
			lineCount += m.renderFunction(&b, f, availableLines-lineCount)
		}
	}
	return b.String(), lineCount
}

func (m *Manager) updateDisplay() {
	text, lines := m.render(getTerminalHeight() - 3)
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	fmt.Fprint(m.out, text)
	m.numLines = lines
}

// printFinal writes a finished job once when there is no live display.
func (m *Manager) printFinal(id int) {
	if m.interactive {
		return
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if f, exists := m.outputs[id]; exists {
		var b strings.Builder
		m.renderFunction(&b, f, 1)
		fmt.Fprint(m.out, b.String())
	}
}

func (m *Manager) StartDisplay() {
	if !m.interactive {
		return
	}
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.updateDisplay()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
	m.ShowSummary()
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, err := range m.errors {
		fmt.Fprintf(m.out, "%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", err.Time.Format("15:04:05"))),
			errorStyle.Render(fmt.Sprintf("URL: %s", err.FunctionName)))
		fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", err.Error)))
	}
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Fprintln(m.out)
	var success, failures, cancelled int
	for _, info := range m.outputs {
		switch info.Status {
		case "success":
			success++
		case "error":
			failures++
		case "warning":
			cancelled++
		}
	}
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(m.outputs))))
	if cancelled > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+warningStyle.Render(fmt.Sprintf("Cancelled %d of %d", cancelled, len(m.outputs))))
	}
	if failures > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.outputs))))
	}
	m.displayErrors()
	fmt.Fprintln(m.out)
}
