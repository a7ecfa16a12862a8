package main

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const mermaidASCIIVersion = "1.1.0"

// SHA-256 checksums for mermaid-ascii v1.1.0 release assets.
var mermaidASCIIChecksums = map[string]string{
	"mermaid-ascii_Darwin_arm64.tar.gz":  "068d2ff869d4921655cab471500fffd8c3ed28155b100518ed3cf3835d53d3d0",
	"mermaid-ascii_Darwin_x86_64.tar.gz": "0cd4c9c01a03284fe866f39a1ce1aaee1e6a2fbd91deedc4ec254cb87622eec8",
	"mermaid-ascii_Linux_arm64.tar.gz":   "3b7d0a95141bfbca838e445ea802ffb7fba8873b3c4af498482c84f83526f2db",
	"mermaid-ascii_Linux_x86_64.tar.gz":  "838ea93d561b3bc83aa15531c6ed7d2d261a8edc521d5484f7e91fe831cc4c65",
}

// runInstall writes settings.json from flags and fetches mermaid-ascii.
func (a *app) runInstall(ctx context.Context, args []string) error {
	fs := a.flagSet("install")
	dbPath := fs.String("db-path", "", "database path (default: ~/.ffts/ffts.db)")
	logLevel := fs.String("log-level", "warn", "log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "text", "log format: text or json")
	profilePath := fs.String("profile", "", "default hardware profile (HCL)")
	poolSize := fs.Int("pool-size", 4, "batch worker pool size")
	schedule := fs.String("retention-schedule", "@daily", `cron schedule for the serve-time retention sweep, or "off"`)
	keep := fs.Int("keep-revisions", 10, "revisions kept per partition (0 keeps all)")
	maxAge := fs.String("retention-max-age", "", "drop revisions older than this (e.g. 720h)")
	skipTools := fs.Bool("skip-tools", false, "do not download mermaid-ascii")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir := fftsDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}

	cfg := Config{
		DBPath:      *dbPath,
		LogLevel:    *logLevel,
		LogFormat:   *logFormat,
		ProfilePath: *profilePath,
		PoolSize:    *poolSize,

		RetentionSchedule: *schedule,
		KeepRevisions:     *keep,
		RetentionMaxAge:   *maxAge,
	}
	if _, err := cfg.retentionPolicy(); err != nil {
		return err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(dir, "ffts.db")
	}
	if cfg.ProfilePath != "" {
		// Fail early on a broken profile rather than at first build.
		if _, err := a.loadProfile(ctx, cfg.ProfilePath, nil, a.logger()); err != nil {
			return err
		}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	path := settingsPath()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	fmt.Fprintf(a.stdout, "Config written to %s\n", path)

	if !*skipTools {
		installMermaidASCII(ctx, binDir(), a.stdout, a.stderr)
	}
	return nil
}

// installMermaidASCII downloads the mermaid-ascii binary to binDir.
// Non-fatal: prints a warning and returns if the download fails.
func installMermaidASCII(ctx context.Context, binDir string, stdout, stderr io.Writer) {
	destPath := filepath.Join(binDir, "mermaid-ascii")

	if _, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(stdout, "mermaid-ascii already installed at %s\n", destPath)
		return
	}

	assetName, err := mermaidASCIIAssetName(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: %v; ASCII diagrams will use the builtin renderer\n", err)
		return
	}

	url := fmt.Sprintf("https://github.com/AlexanderGrooff/mermaid-ascii/releases/download/%s/%s",
		mermaidASCIIVersion, assetName)

	fmt.Fprintf(stdout, "Downloading mermaid-ascii %s...\n", mermaidASCIIVersion)

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		fmt.Fprintf(stderr, "Warning: cannot create %s: %v\n", binDir, err)
		return
	}

	client := &ctxGetter{ctx: ctx, client: &http.Client{Timeout: 60 * time.Second}}
	tmpPath, err := downloadToTempFile(url, binDir, client)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: download failed: %v; ASCII diagrams will use the builtin renderer\n", err)
		return
	}
	defer os.Remove(tmpPath)

	if err := verifyAsset(tmpPath, assetName); err != nil {
		fmt.Fprintf(stderr, "Warning: %v; ASCII diagrams will use the builtin renderer\n", err)
		return
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: cannot open archive: %v\n", err)
		return
	}
	defer f.Close()

	if err := extractTarGz(f, binDir, "mermaid-ascii"); err != nil {
		fmt.Fprintf(stderr, "Warning: extraction failed: %v; ASCII diagrams will use the builtin renderer\n", err)
		_ = os.Remove(destPath)
		return
	}
	if err := os.Chmod(destPath, 0o755); err != nil {
		fmt.Fprintf(stderr, "Warning: chmod failed: %v\n", err)
	}

	fmt.Fprintf(stdout, "mermaid-ascii installed to %s\n", destPath)
}

// verifyAsset checks a downloaded archive against the pinned checksum.
func verifyAsset(path, assetName string) error {
	expected, ok := mermaidASCIIChecksums[assetName]
	if !ok {
		return fmt.Errorf("no known checksum for %s", assetName)
	}
	actual, err := sha256File(path)
	if err != nil {
		return fmt.Errorf("cannot compute checksum: %w", err)
	}
	if actual != expected {
		return fmt.Errorf("checksum mismatch for %s (expected %s, got %s)", assetName, expected, actual)
	}
	return nil
}

// mermaidASCIIAssetName returns the GitHub release asset name for a platform.
func mermaidASCIIAssetName(goos, goarch string) (string, error) {
	osName := ""
	switch goos {
	case "darwin":
		osName = "Darwin"
	case "linux":
		osName = "Linux"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported OS %q", goos)
	}

	archName := ""
	switch goarch {
	case "amd64":
		archName = "x86_64"
	case "arm64":
		archName = "arm64"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported architecture %q", goarch)
	}

	return fmt.Sprintf("mermaid-ascii_%s_%s.tar.gz", osName, archName), nil
}

// extractTarGz extracts a specific file from a tar.gz archive into destDir.
func extractTarGz(r io.Reader, destDir, targetName string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("file %q not found in archive", targetName)
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}

		// Archives may carry a directory prefix.
		if filepath.Base(hdr.Name) != targetName || hdr.Typeflag != tar.TypeReg {
			continue
		}

		destPath := filepath.Join(destDir, targetName)
		f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return fmt.Errorf("create %s: %w", destPath, err)
		}
		if _, err := io.Copy(f, tr); err != nil { //nolint:gosec // bounded by tar header size
			f.Close()
			return fmt.Errorf("write %s: %w", destPath, err)
		}
		return f.Close()
	}
}
