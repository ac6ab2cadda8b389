package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"geotagger/internal/artifacts"
	"geotagger/internal/config"
	"geotagger/internal/pipeline"
	"geotagger/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	inputDir   string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	inputDir := filepath.Join(base, "input")
	testsupport.WriteFile(t, filepath.Join(inputDir, "IMG_0001.jpg"), 64)
	testsupport.WriteCSV(t, filepath.Join(inputDir, "flight.csv"),
		[]string{"Latitude", "Longitude", "PPM", "Photo"},
		[]string{"1.5", "2.5", "12", "IMG_0001.jpg"},
	)

	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(base, "config.toml"),
		baseDir:    base,
		inputDir:   inputDir,
	}
	env.writeConfig(t)
	return env
}

func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	data, err := e.cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(e.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func runFolders(t *testing.T, root string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(root, artifacts.RunFolderPrefix+"*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return matches
}

func TestCLIConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "generated", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already exists error, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, env.configPath) {
		t.Fatalf("unexpected validate output: %q", out)
	}
}

func TestCLIConfigShowPrintsEffectiveConfig(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMode(config.ModeCombined))

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"[run]", "combined", "[exiftool]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestCLIRejectsInvalidConfig(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMode("sideways"))

	if _, _, err := runCLI(t, []string{"scan", env.inputDir}, env.configPath); err == nil {
		t.Fatal("expected invalid mode to be rejected")
	}
}

func TestCLIScanJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"scan", "--json", env.inputDir}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var report scanReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode scan output: %v\n%s", err, out)
	}
	want := scanReport{
		Photos: []string{filepath.Join(env.inputDir, "IMG_0001.jpg")},
		Logs:   []scanLogReport{{Path: filepath.Join(env.inputDir, "flight.csv"), Rows: 1}},
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("scan report mismatch (-want +got):\n%s", diff)
	}
}

func TestCLIMatchFindsLogsNextToPhoto(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"match", filepath.Join(env.inputDir, "IMG_0001.jpg")}, env.configPath)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	for _, want := range []string{"Method:  FILENAME", "Lat:     1.5", "Lon:     2.5", "PPM:     12", "flight.csv"} {
		if !strings.Contains(out, want) {
			t.Fatalf("match output missing %q:\n%s", want, out)
		}
	}
}

func TestCLIMatchReportsCorrelationFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	photo := filepath.Join(env.inputDir, "IMG_0002.jpg")
	testsupport.WriteFile(t, photo, 64)

	_, _, err := runCLI(t, []string{"match", photo}, env.configPath)
	if err == nil {
		t.Fatal("expected unmatched photo to fail")
	}
	if !strings.Contains(err.Error(), "no filename timestamp") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCLIRunDryRunWritesArtifacts(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "--dry-run", "--name", "site-a", env.inputDir}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "site-a") || !strings.Contains(out, "completed") {
		t.Fatalf("unexpected run summary:\n%s", out)
	}

	folders := runFolders(t, env.cfg.Encroachment.OutputRoot)
	if len(folders) != 1 {
		t.Fatalf("expected one run folder, got %v", folders)
	}
	rows, err := artifacts.ReadManifest(filepath.Join(folders[0], artifacts.ManifestName))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != artifacts.StatusSuccess {
		t.Fatalf("unexpected manifest rows: %+v", rows)
	}
	if rows[0].ExifWritten {
		t.Fatal("dry run must not report exif written")
	}
	for _, name := range []string{artifacts.RunLogName, artifacts.RunConfigName, artifacts.SummaryName} {
		if _, err := os.Stat(filepath.Join(folders[0], name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	rc, err := pipeline.ReadRunConfig(filepath.Join(folders[0], artifacts.RunConfigName))
	if err != nil {
		t.Fatalf("read run config: %v", err)
	}
	if rc.Name != "site-a" || !rc.Options.DryRun || len(rc.Inputs) != 1 {
		t.Fatalf("unexpected run config: %+v", rc)
	}
}

func TestCLIRunSeparateQueuesOneJobPerInput(t *testing.T) {
	env := setupCLITestEnv(t)
	second := filepath.Join(env.baseDir, "input2")
	testsupport.WriteFile(t, filepath.Join(second, "IMG_0009.jpg"), 64)
	testsupport.WriteCSV(t, filepath.Join(second, "flight.csv"),
		[]string{"Latitude", "Longitude", "PPM", "Photo"},
		[]string{"3", "4", "5", "IMG_0009.jpg"},
	)
	outRoot := filepath.Join(env.baseDir, "runs")

	out, _, err := runCLI(t, []string{"run", "--dry-run", "--separate", "--name", "batch", "--output-root", outRoot, env.inputDir, second}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "batch-1") || !strings.Contains(out, "batch-2") {
		t.Fatalf("expected both jobs in summary:\n%s", out)
	}
	if folders := runFolders(t, outRoot); len(folders) != 2 {
		t.Fatalf("expected two run folders, got %v", folders)
	}
}

func TestCLIRunRequiresExifToolOutsideDryRun(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.ExifTool.Binary = "definitely-not-installed-exiftool"
	env.writeConfig(t)

	_, _, err := runCLI(t, []string{"run", env.inputDir}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected missing exiftool error, got %v", err)
	}
	if folders := runFolders(t, env.cfg.Encroachment.OutputRoot); len(folders) != 0 {
		t.Fatalf("no run folder expected, got %v", folders)
	}
}

func writePreviousManifest(t *testing.T, env *cliTestEnv, rows []artifacts.ManifestRow) string {
	t.Helper()
	dir := filepath.Join(env.baseDir, "previous")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := artifacts.WriteManifest(filepath.Join(dir, artifacts.ManifestName), rows); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return dir
}

func TestCLIRerunFailed(t *testing.T) {
	env := setupCLITestEnv(t)
	photo := filepath.Join(env.inputDir, "IMG_0001.jpg")
	prev := writePreviousManifest(t, env, []artifacts.ManifestRow{
		{SourcePath: photo, Status: artifacts.StatusFailed, Reason: "exiftool failed", CSVPath: filepath.Join(env.inputDir, "flight.csv")},
		{SourcePath: filepath.Join(env.inputDir, "gone.jpg"), Status: artifacts.StatusFailed, Reason: "photo unreadable"},
	})

	out, _, err := runCLI(t, []string{"rerun-failed", "--dry-run", prev}, env.configPath)
	if err != nil {
		t.Fatalf("rerun-failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Re-running 1 failed photo(s) with 1 sensor log(s)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	folders := runFolders(t, env.cfg.Encroachment.OutputRoot)
	if len(folders) != 1 {
		t.Fatalf("expected one run folder, got %v", folders)
	}
	rows, err := artifacts.ReadManifest(filepath.Join(folders[0], artifacts.ManifestName))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if len(rows) != 1 || rows[0].SourcePath != photo || rows[0].Status != artifacts.StatusSuccess {
		t.Fatalf("unexpected rerun manifest: %+v", rows)
	}
}

func TestCLIRerunFailedNothingToDo(t *testing.T) {
	env := setupCLITestEnv(t)
	prev := writePreviousManifest(t, env, []artifacts.ManifestRow{
		{SourcePath: filepath.Join(env.inputDir, "IMG_0001.jpg"), Status: artifacts.StatusSuccess},
	})

	out, _, err := runCLI(t, []string{"rerun-failed", prev}, env.configPath)
	if err != nil {
		t.Fatalf("rerun-failed: %v", err)
	}
	if !strings.Contains(out, "No failed photos to re-run") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCLIManifestShowFailedOnly(t *testing.T) {
	env := setupCLITestEnv(t)
	lat, lon, ppm := 1.5, 2.5, 12.0
	prev := writePreviousManifest(t, env, []artifacts.ManifestRow{
		{SourcePath: "/in/good.jpg", Status: artifacts.StatusSuccess, Lat: &lat, Lon: &lon, PPM: &ppm, JoinMethod: "FILENAME"},
		{SourcePath: "/in/bad.jpg", Status: artifacts.StatusFailed, Reason: "ambiguous timestamp join"},
	})

	out, _, err := runCLI(t, []string{"manifest", "show", "--failed", prev}, "")
	if err != nil {
		t.Fatalf("manifest show: %v", err)
	}
	if !strings.Contains(out, "bad.jpg") || !strings.Contains(out, "ambiguous timestamp join") {
		t.Fatalf("failed row missing:\n%s", out)
	}
	if strings.Contains(out, "good.jpg") {
		t.Fatalf("--failed should hide successful rows:\n%s", out)
	}
	if !strings.Contains(out, "SUCCESS 1  FAILED 1  SKIPPED 0  PENDING 0") {
		t.Fatalf("status counts missing:\n%s", out)
	}
}

func TestCLIDoctorWithStubbedExifTool(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	if !strings.Contains(out, "ExifTool") || !strings.Contains(out, "All checks passed") {
		t.Fatalf("unexpected doctor output:\n%s", out)
	}
}
