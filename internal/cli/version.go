package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/spf13/cobra"
)

const (
	githubAPIURL = "https://api.github.com"
	githubOwner  = "ferreiramx"
	githubRepo   = "smart-events"
)

var versionCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the smart-events version",
	Long: `Print the smart-events version.

With --check, also query GitHub for the latest release and report
whether an upgrade is available.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("smart-events %s\n", Version)
		if !versionCheck {
			return nil
		}
		return runVersionCheck()
	},
}

func runVersionCheck() error {
	latest, err := detectLatestRelease()
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	current, err := semver.ParseTolerant(Version)
	if err != nil {
		// Dev builds have no comparable version.
		fmt.Printf("latest release: v%s\n", latest)
		return nil
	}

	if latest.GT(current) {
		fmt.Printf("update available: v%s -> v%s\n", current, latest)
	} else {
		fmt.Println("up to date")
	}
	return nil
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// detectLatestRelease fetches the latest non-draft release version from
// GitHub.
func detectLatestRelease() (semver.Version, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", githubAPIURL, githubOwner, githubRepo)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return semver.Version{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "smart-events-version-check")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return semver.Version{}, fmt.Errorf("failed to fetch releases: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return semver.Version{}, fmt.Errorf("no releases found for %s/%s", githubOwner, githubRepo)
	}
	if resp.StatusCode != http.StatusOK {
		return semver.Version{}, fmt.Errorf("GitHub API error: %s", resp.Status)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return semver.Version{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if release.Draft || release.Prerelease {
		return semver.Version{}, fmt.Errorf("latest release %q is not stable", release.TagName)
	}

	version, err := semver.Parse(strings.TrimPrefix(release.TagName, "v"))
	if err != nil {
		return semver.Version{}, fmt.Errorf("invalid version tag %q: %w", release.TagName, err)
	}
	return version, nil
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "Check GitHub for a newer release")
	RootCmd.AddCommand(versionCmd)
}
