// otsctl is the control CLI for otsd.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"otsgo/internal/attestation"
	"otsgo/internal/calendar"
	"otsgo/internal/config"
	"otsgo/internal/detached"
	"otsgo/internal/ops"
	"otsgo/internal/pending"
	"otsgo/internal/proof"
	"otsgo/internal/timestamp"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

var (
	configPath  = flag.String("config", "", "path to config file")
	noColor     = flag.Bool("no-color", false, "disable colored output")
	showVersion = flag.Bool("version", false, "show version information")
	quiet       = flag.Bool("q", false, "suppress banner")
)

// ANSI color codes
type colors struct {
	Reset   string
	Bold    string
	Dim     string
	Red     string
	Green   string
	Yellow  string
	Blue    string
	Magenta string
	Cyan    string
	White   string
}

var c colors

func initColors() {
	if *noColor || os.Getenv("NO_COLOR") != "" || !isTerminal() {
		c = colors{}
		return
	}

	c = colors{
		Reset:   "\033[0m",
		Bold:    "\033[1m",
		Dim:     "\033[2m",
		Red:     "\033[31m",
		Green:   "\033[32m",
		Yellow:  "\033[33m",
		Blue:    "\033[34m",
		Magenta: "\033[35m",
		Cyan:    "\033[36m",
		White:   "\033[37m",
	}
}

func isTerminal() bool {
	if runtime.GOOS == "windows" {
		return os.Getenv("TERM") != "" || os.Getenv("WT_SESSION") != ""
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

const banner = `
%s          ╔═╗╔╦╗╔═╗╔═╗╔╦╗╦%s
%s          ║ ║ ║ ╚═╗║ ╦ ║ ║%s
%s          ╚═╝ ╩ ╚═╝╚═╝ ╩ ╩%s%sctl%s
%s    ─────────────────────────────────%s
%s       OpenTimestamps proof control%s

`

func printBanner() {
	fmt.Fprintf(os.Stderr, banner,
		c.Cyan+c.Bold, c.Reset,
		c.Cyan+c.Bold, c.Reset,
		c.Cyan+c.Bold, c.Reset, c.Dim, c.Reset,
		c.Dim, c.Reset,
		c.Dim, c.Reset,
	)
}

func printVersion() {
	fmt.Printf("%sotsctl%s %s%s%s\n", c.Bold, c.Reset, c.Cyan, Version, c.Reset)
	fmt.Printf("  %sBuild%s       %s\n", c.Dim, c.Reset, BuildTime)
	fmt.Printf("  %sCommit%s      %s\n", c.Dim, c.Reset, Commit)
	fmt.Printf("  %sPlatform%s    %s/%s\n", c.Dim, c.Reset, runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  %sGo%s          %s\n", c.Dim, c.Reset, runtime.Version())
}

func main() {
	flag.Parse()
	initColors()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		if !*quiet {
			printBanner()
		}
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)

	if !*quiet && cmd != "help" && cmd != "version" {
		printBanner()
	}

	switch cmd {
	case "stamp":
		if flag.NArg() < 2 {
			printError("Usage: otsctl stamp <file> [output.ots]")
			os.Exit(1)
		}
		output := ""
		if flag.NArg() >= 3 {
			output = flag.Arg(2)
		}
		cmdStamp(flag.Arg(1), output)
	case "verify":
		if flag.NArg() < 2 {
			printError("Usage: otsctl verify <file> [proof.ots]")
			os.Exit(1)
		}
		proofPath := ""
		if flag.NArg() >= 3 {
			proofPath = flag.Arg(2)
		}
		cmdVerify(flag.Arg(1), proofPath)
	case "upgrade":
		if flag.NArg() < 2 {
			printError("Usage: otsctl upgrade <proof.ots>")
			os.Exit(1)
		}
		cmdUpgrade(flag.Arg(1))
	case "info":
		infoFlags := flag.NewFlagSet("info", flag.ExitOnError)
		format := infoFlags.String("format", "text", "output format: text or yaml")
		infoFlags.Parse(flag.Args()[1:])
		if infoFlags.NArg() < 1 {
			printError("Usage: otsctl info [-format text|yaml] <proof.ots>")
			os.Exit(1)
		}
		cmdInfo(infoFlags.Arg(0), *format)
	case "pending":
		cmdPending()
	case "help":
		if !*quiet {
			printBanner()
		}
		usage()
	case "version":
		printVersion()
	default:
		printError(fmt.Sprintf("Unknown command: %s", cmd))
		usage()
		os.Exit(1)
	}
}

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "%s%s ERROR %s %s\n", c.Bold, c.Red, c.Reset, msg)
}

func printSection(title string) {
	fmt.Printf("\n%s%s %s %s\n\n", c.Bold, c.Cyan, title, c.Reset)
}

func usage() {
	fmt.Fprintf(os.Stderr, `%sUSAGE%s
    otsctl [options] <command> [arguments]

%sCOMMANDS%s
    %sstamp%s   <file> [out]    Stamp a file's digest with the configured calendars
    %sverify%s  <file> [proof]  Verify a file against a detached .ots proof
    %supgrade%s <proof>         Attempt to upgrade a pending proof to a Bitcoin attestation
    %sinfo%s    <proof>         Describe a proof's attestations and operation chain
              -format text|yaml   Output format (default text)
    %spending%s                 List proofs awaiting a Bitcoin attestation
    %shelp%s                    Show this help message
    %sversion%s                 Show version information

%sOPTIONS%s
    -config <path>   Path to config file (default: ~/.otsgo/config.toml)
    -no-color        Disable colored output
    -q               Suppress banner

%sEXAMPLES%s
    otsctl stamp report.pdf
    otsctl verify report.pdf report.pdf.ots
    otsctl upgrade report.pdf.ots
    otsctl info report.pdf.ots

%sLEARN MORE%s
    https://opentimestamps.org

`,
		c.Bold+c.White, c.Reset,
		c.Bold+c.White, c.Reset,
		c.Cyan, c.Reset,
		c.Cyan, c.Reset,
		c.Cyan, c.Reset,
		c.Cyan, c.Reset,
		c.Cyan, c.Reset,
		c.Cyan, c.Reset,
		c.Cyan, c.Reset,
		c.Bold+c.White, c.Reset,
		c.Bold+c.White, c.Reset,
	)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(*configPath)
	if err != nil {
		printError(fmt.Sprintf("loading config: %v", err))
		os.Exit(1)
	}
	return cfg
}

func hashFile(path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [32]byte{}, err
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

func defaultOutputPath(filePath string) string {
	return filePath + ".ots"
}

func cmdStamp(filePath, outputPath string) {
	cfg := loadConfig()

	digest, err := hashFile(filePath)
	if err != nil {
		printError(fmt.Sprintf("hashing file: %v", err))
		os.Exit(1)
	}

	opts := calendar.Options{
		Aggregators:     cfg.Calendar.Aggregators,
		MinAttestations: cfg.Calendar.MinAttestations,
		Timeout:         time.Duration(cfg.Calendar.TimeoutSec) * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout+5*time.Second)
	defer cancel()

	poster := calendar.NewHTTPPoster(nil)
	ts, err := calendar.Stamp(ctx, poster, digest, opts)
	if err != nil {
		printError(fmt.Sprintf("stamping: %v", err))
		os.Exit(1)
	}

	file, err := detached.New(ops.Sha256, digest[:], ts.Steps)
	if err != nil {
		printError(fmt.Sprintf("building proof envelope: %v", err))
		os.Exit(1)
	}

	if outputPath == "" {
		outputPath = defaultOutputPath(filePath)
	}

	if err := writeFile(outputPath, file.Bytes()); err != nil {
		printError(fmt.Sprintf("writing proof: %v", err))
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		printError(fmt.Sprintf("creating data directories: %v", err))
		os.Exit(1)
	}
	store, err := pending.Open(cfg.Storage.PendingDBPath)
	if err != nil {
		printError(fmt.Sprintf("opening pending store: %v", err))
		os.Exit(1)
	}
	defer store.Close()

	now := time.Now().Unix()
	if err := store.Put(pending.Record{
		Digest:      digest,
		Algo:        ops.Sha256,
		Steps:       ts.Steps,
		SubmittedAt: now,
	}); err != nil {
		printError(fmt.Sprintf("recording pending proof: %v", err))
		os.Exit(1)
	}

	fmt.Printf("\n%s%s STAMPED %s\n\n", c.Bold, c.Green, c.Reset)
	fmt.Printf("  %sFile%s      %s\n", c.Dim, c.Reset, filePath)
	fmt.Printf("  %sDigest%s    %s%s%s\n", c.Dim, c.Reset, c.Cyan, hex.EncodeToString(digest[:]), c.Reset)
	fmt.Printf("  %sProof%s     %s\n", c.Dim, c.Reset, outputPath)
	fmt.Println()
}

func cmdVerify(filePath, proofPath string) {
	if proofPath == "" {
		proofPath = defaultOutputPath(filePath)
	}

	file, err := readProof(proofPath)
	if err != nil {
		printError(fmt.Sprintf("reading proof: %v", err))
		os.Exit(1)
	}

	fd, ok := file.Timestamp.Msg.(timestamp.FileDigest)
	if !ok {
		printError("proof does not carry a file digest")
		os.Exit(1)
	}

	digest, err := hashFile(filePath)
	if err != nil {
		printError(fmt.Sprintf("hashing file: %v", err))
		os.Exit(1)
	}

	if hex.EncodeToString(digest[:]) != hex.EncodeToString(fd.Digest) {
		fmt.Printf("\n%s%s VERIFICATION FAILED %s\n\n", c.Bold, c.Red, c.Reset)
		fmt.Printf("  %sError%s  file hash does not match the proof's digest\n\n", c.Red, c.Reset)
		os.Exit(1)
	}

	events, err := file.Timestamp.Evaluate()
	if err != nil {
		printError(fmt.Sprintf("evaluating proof: %v", err))
		os.Exit(1)
	}

	attested := false
	for _, e := range events {
		if e.Step.Kind == proof.KindAttestation {
			if _, ok := e.Step.Attestation.(attestation.Bitcoin); ok {
				attested = true
			}
		}
	}

	if attested {
		fmt.Printf("\n%s%s VERIFICATION PASSED %s\n\n", c.Bold, c.Green, c.Reset)
	} else {
		fmt.Printf("\n%s%s NO ATTESTATIONS FOUND %s\n\n", c.Bold, c.Yellow, c.Reset)
	}

	fmt.Printf("  %sFile%s    %s\n", c.Dim, c.Reset, filePath)
	fmt.Printf("  %sDigest%s  %s%s%s\n", c.Dim, c.Reset, c.Cyan, hex.EncodeToString(digest[:]), c.Reset)
	fmt.Printf("  %sProof%s   %s\n", c.Dim, c.Reset, proofPath)
	fmt.Println()
}

func cmdUpgrade(proofPath string) {
	cfg := loadConfig()

	file, err := readProof(proofPath)
	if err != nil {
		printError(fmt.Sprintf("reading proof: %v", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Calendar.TimeoutSec)*time.Second)
	defer cancel()

	getter := calendar.NewHTTPGetter(nil)
	upgraded, changed, err := calendar.Upgrade(ctx, getter, file.Timestamp)
	if err != nil {
		printError(fmt.Sprintf("upgrading: %v", err))
		os.Exit(1)
	}

	if !changed {
		fmt.Printf("\n%s%s STILL PENDING %s\n\n", c.Bold, c.Yellow, c.Reset)
		fmt.Printf("  %sNo calendar has confirmed this proof yet.%s\n\n", c.Dim, c.Reset)
		return
	}

	fd := file.Timestamp.Msg.(timestamp.FileDigest)
	newFile, err := detached.New(fd.Algo, fd.Digest, upgraded.Steps)
	if err != nil {
		printError(fmt.Sprintf("rebuilding proof: %v", err))
		os.Exit(1)
	}

	if err := writeFile(proofPath, newFile.Bytes()); err != nil {
		printError(fmt.Sprintf("writing upgraded proof: %v", err))
		os.Exit(1)
	}

	fmt.Printf("\n%s%s UPGRADED %s\n\n", c.Bold, c.Green, c.Reset)
	fmt.Printf("  %sProof%s  %s\n", c.Dim, c.Reset, proofPath)
	fmt.Println()
}

func cmdInfo(proofPath, format string) {
	file, err := readProof(proofPath)
	if err != nil {
		printError(fmt.Sprintf("reading proof: %v", err))
		os.Exit(1)
	}

	infos, err := timestamp.Describe(file.Timestamp)
	if err != nil {
		printError(fmt.Sprintf("describing proof: %v", err))
		os.Exit(1)
	}

	if format == "yaml" {
		printInfoYAML(proofPath, infos)
		return
	}

	printSection("ATTESTATIONS")
	for i, info := range infos {
		fmt.Printf("  %s[%d]%s %s\n", c.Dim, i, c.Reset, describeAttestation(info))
		fmt.Printf("      %smsg%s %s\n", c.Dim, c.Reset, hex.EncodeToString(info.Msg))
		if len(info.Ops) > 0 {
			fmt.Printf("      %sops%s %v\n", c.Dim, c.Reset, info.Ops)
		}
	}
	fmt.Println()
}

// yamlAttestationInfo is the YAML-friendly projection of
// timestamp.AttestationInfo: AttestationInfo itself carries an interface
// field and raw bytes, neither of which marshal usefully on their own.
type yamlAttestationInfo struct {
	Kind string   `yaml:"kind"`
	Info string   `yaml:"info"`
	Msg  string   `yaml:"msg"`
	Ops  []string `yaml:"ops,omitempty"`
}

type yamlProofInfo struct {
	Proof        string                `yaml:"proof"`
	Attestations []yamlAttestationInfo `yaml:"attestations"`
}

func printInfoYAML(proofPath string, infos []timestamp.AttestationInfo) {
	out := yamlProofInfo{Proof: proofPath}
	for _, info := range infos {
		out.Attestations = append(out.Attestations, yamlAttestationInfo{
			Kind: fmt.Sprintf("%T", info.Attestation),
			Info: describeAttestation(info),
			Msg:  hex.EncodeToString(info.Msg),
			Ops:  info.Ops,
		})
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		printError(fmt.Sprintf("marshaling yaml: %v", err))
		os.Exit(1)
	}
	os.Stdout.Write(data)
}

func describeAttestation(info timestamp.AttestationInfo) string {
	switch a := info.Attestation.(type) {
	case attestation.Bitcoin:
		return fmt.Sprintf("bitcoin block %d", a.BlockHeight)
	case attestation.Pending:
		return fmt.Sprintf("pending at %s", a.URI)
	default:
		return fmt.Sprintf("%T", a)
	}
}

func cmdPending() {
	cfg := loadConfig()

	store, err := pending.Open(cfg.Storage.PendingDBPath)
	if err != nil {
		printError(fmt.Sprintf("opening pending store: %v", err))
		os.Exit(1)
	}
	defer store.Close()

	records, err := store.ListAll()
	if err != nil {
		printError(fmt.Sprintf("listing pending proofs: %v", err))
		os.Exit(1)
	}

	printSection("PENDING PROOFS")
	if len(records) == 0 {
		fmt.Printf("  %sNone.%s\n\n", c.Dim, c.Reset)
		return
	}

	for _, r := range records {
		submitted := time.Unix(r.SubmittedAt, 0).UTC().Format(time.RFC3339)
		fmt.Printf("  %s%s%s  submitted %s  attempts %d\n",
			c.Cyan, hex.EncodeToString(r.Digest[:]), c.Reset, submitted, r.Attempts)
	}
	fmt.Println()
}

func readProof(path string) (detached.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return detached.File{}, err
	}
	defer f.Close()
	return detached.Deserialize(f)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
