// pattern: Imperative Shell

package wizard

import (
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"droid/internal/config"
)

const probeTimeout = 10 * time.Second

// Run executes the interactive configuration wizard and writes the
// result to configPath on completion.
func Run(configPath string) error {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return err
	}

	m := NewModel(configPath, cfg, CheckGitHubRepo)
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return fmt.Errorf("wizard: %w", err)
	}

	result, ok := final.(Model)
	if !ok {
		return nil
	}
	if result.err != nil {
		return result.err
	}
	if result.aborted {
		fmt.Println("Aborted.")
	}
	return nil
}

// CheckGitHubRepo requests the repository page on github.com and returns
// the HTTP status code.
func CheckGitHubRepo(org, project string) (int, error) {
	return checkRepoStatus("https://github.com", org, project)
}

func checkRepoStatus(base, org, project string) (int, error) {
	client := &http.Client{Timeout: probeTimeout}
	resp, err := client.Get(fmt.Sprintf("%s/%s/%s", base, org, project))
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
