// Command emvterm drives an EMV contact transaction against a live PC/SC
// reader, printing each step's outcome and prompting for application
// selection and the authorized amount.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/barnettlynn/emvkernel/emv"
	"github.com/barnettlynn/emvkernel/emv/directory"
	"github.com/barnettlynn/emvkernel/emv/field"
	"github.com/barnettlynn/emvkernel/emv/tal"
	"github.com/barnettlynn/emvkernel/internal/config"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	configPath := flag.String("config", "emvterm.yaml", "path to terminal config YAML")
	readerArg := flag.String("reader", "0", "reader index or name substring")
	amountStr := flag.String("amount", "", "authorized amount (minor currency units); prompted if omitted")
	dumpFCI := flag.Bool("dump-fci", false, "SELECT the first configured AID, print its FCI tree, and exit")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}

	cfg, err := config.LoadWithMode(*configPath, config.ValidationFull)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	termCfg, err := buildTerminalConfig(cfg)
	if err != nil {
		log.Fatalf("terminal config error: %v", err)
	}
	riskCfg, err := buildRiskConfig(cfg, time.Now().UnixNano())
	if err != nil {
		log.Fatalf("risk config error: %v", err)
	}

	conn, err := connectReader(*readerArg)
	if err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer conn.Close()

	if *dumpFCI {
		if err := runDumpFCI(conn, termCfg); err != nil {
			log.Fatalf("dump-fci failed: %v", err)
		}
		return
	}

	amount, err := resolveAmount(*amountStr)
	if err != nil {
		log.Fatalf("amount error: %v", err)
	}

	terminalCountry, err := decodeCountryCode(cfg.Terminal.CountryCodeHex)
	if err != nil {
		log.Fatalf("terminal country code error: %v", err)
	}

	tr := newPCSCTransport(conn)
	sess := emv.NewSession(tr, termCfg)
	defer sess.Close()

	outcome, err := runTransaction(sess, riskCfg, amount, terminalCountry)
	if err != nil {
		log.Fatalf("transaction error: %v", err)
	}
	fmt.Printf("Outcome: %s\n", outcome)
	fmt.Printf("TVR: %x  TSI: %x\n", sess.TVR(), sess.TSI())
}

// runDumpFCI SELECTs the first configured AID directly over the transport
// and prints its FCI as a BER-TLV tree, bypassing the session state machine
// entirely. It's a diagnostic path for checking a card's FCI layout without
// running a full transaction.
func runDumpFCI(conn *connection, termCfg *emv.TerminalConfig) error {
	if len(termCfg.SupportedAIDs) == 0 {
		return fmt.Errorf("no supported AIDs configured")
	}
	tr := newPCSCTransport(conn)
	aid := termCfg.SupportedAIDs[0].AID
	fci, sw, err := tr.SelectByDFName(aid)
	if err != nil {
		return err
	}
	if sw != tal.SWSuccess {
		return fmt.Errorf("SELECT %x returned SW %04X", aid, uint16(sw))
	}
	tree, err := directory.Describe(fci)
	if err != nil {
		return err
	}
	fmt.Println(tree)
	return nil
}

func resolveAmount(arg string) (uint64, error) {
	if arg != "" {
		return strconv.ParseUint(arg, 10, 64)
	}
	fmt.Print("Amount (minor units): ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(line), 10, 64)
}

func decodeCountryCode(hexStr string) ([2]byte, error) {
	var code [2]byte
	b, err := hex.DecodeString(strings.TrimSpace(hexStr))
	if err != nil {
		return code, err
	}
	if len(b) != 2 {
		return code, fmt.Errorf("country code must decode to 2 bytes, got %d", len(b))
	}
	copy(code[:], b)
	return code, nil
}

func runTransaction(sess *emv.Session, rc emv.RiskConfig, amount uint64, terminalCountry [2]byte) (emv.Outcome, error) {
	if outcome, err := sess.DiscoverApplications(); err != nil || outcome.Terminal() {
		return outcome, err
	}

	idx, err := chooseApplication(sess)
	if err != nil {
		return 0, err
	}
	if outcome, err := sess.SelectByIndex(idx); err != nil || outcome.Terminal() {
		return outcome, err
	}

	now := time.Now()
	txn := emv.TxnParams{
		AmountAuthorized:   amount,
		TransactionType:    0x00, // goods and services purchase
		TransactionDateBCD: bcdDate(now),
	}

	if outcome, err := sess.RunGPO(txn); err != nil || outcome.Terminal() {
		return outcome, err
	}
	if outcome, err := sess.RunReadRecords(); err != nil || outcome.Terminal() {
		return outcome, err
	}
	logCVMList(sess)
	if outcome, err := sess.RunOfflineDataAuthentication(rc); err != nil || outcome.Terminal() {
		return outcome, err
	}
	if outcome, err := sess.RunProcessingRestrictions(txn, terminalCountry); err != nil || outcome.Terminal() {
		return outcome, err
	}
	if outcome, err := sess.RunTerminalRiskManagement(txn, rc); err != nil || outcome.Terminal() {
		return outcome, err
	}
	return sess.RunFirstGenerateAC(rc)
}

func chooseApplication(sess *emv.Session) (int, error) {
	apps := sess.Candidates()
	if apps.Len() == 0 {
		return 0, fmt.Errorf("no supported applications found on card")
	}
	if apps.Len() == 1 {
		return 0, nil
	}
	labels := make([]string, apps.Len())
	for i, app := range apps.All() {
		labels[i] = app.DisplayName
	}
	idx := selectMenu("Select an application:", labels)
	if idx < 0 {
		return 0, fmt.Errorf("no application selected")
	}
	return idx, nil
}

// logCVMList prints the card's CVM List, if present, for operator visibility.
// The kernel doesn't act on it; PIN/signature CVM processing is out of scope.
func logCVMList(sess *emv.Session) {
	f, ok := sess.ICC().Find(emv.TagCVMList)
	if !ok {
		return
	}
	cvm, err := field.ParseCVMList(f.Value)
	if err != nil {
		slog.Warn("malformed CVM list", "error", err)
		return
	}
	slog.Debug("CVM list", "amount_x", cvm.AmountX, "amount_y", cvm.AmountY, "rules", len(cvm.Rules))
	for i, r := range cvm.Rules {
		slog.Debug("CVM rule", "index", i, "method", r.Method, "apply_next", r.ApplyNext, "condition", r.Condition)
	}
}

func bcdDate(t time.Time) [3]byte {
	y := t.Year() % 100
	return [3]byte{byteBCD(y), byteBCD(int(t.Month())), byteBCD(t.Day())}
}

func byteBCD(v int) byte { return byte((v/10)<<4 | (v % 10)) }
