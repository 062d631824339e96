package flow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/reunite-bot/reunite/internal/engine"
	"github.com/reunite-bot/reunite/internal/geo"
	"github.com/reunite-bot/reunite/internal/i18n"
	"github.com/reunite-bot/reunite/internal/messaging"
	"github.com/reunite-bot/reunite/internal/models"
	"github.com/reunite-bot/reunite/internal/session"
	"github.com/reunite-bot/reunite/internal/sms"
	"github.com/reunite-bot/reunite/internal/store"
	"github.com/reunite-bot/reunite/internal/wallet"
)

const testUser = "15550001234"

// testChain serves balances per address and accepts every transfer.
type testChain struct {
	balances map[string]float64
	txCount  int
}

func (c *testChain) Balance(ctx context.Context, address string) (float64, error) {
	return c.balances[address], nil
}

func (c *testChain) SubmitTransfer(ctx context.Context, signedTx string) (string, error) {
	c.txCount++
	return "tx-1", nil
}

// stubUploader returns a fixed URL for every upload.
type stubUploader struct{ url string }

func (u *stubUploader) Upload(ctx context.Context, path string) (string, error) {
	return u.url, nil
}

type testBot struct {
	svc      *messaging.MockService
	store    *store.InMemoryStore
	sessions *session.InMemoryStore
	chain    *testChain
	wallets  *wallet.Manager
	verifier *sms.MemoryVerifier
	engine   *engine.Engine
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	return newTestBotWrapped(t, nil)
}

// newTestBotWrapped lets a test interpose its own store on top of the
// in-memory one, for fault injection.
func newTestBotWrapped(t *testing.T, wrap func(store.Store) store.Store) *testBot {
	t.Helper()

	inmem := store.NewInMemoryStore()
	var st store.Store = inmem
	if wrap != nil {
		st = wrap(st)
	}
	ch := &testChain{balances: make(map[string]float64)}
	mgr, err := wallet.NewManager(wallet.WithStore(st), wallet.WithChain(ch), wallet.WithEscrowAddress("escrow-addr"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	loc, err := i18n.Load()
	if err != nil {
		t.Fatalf("i18n.Load failed: %v", err)
	}
	idx, err := geo.Load()
	if err != nil {
		t.Fatalf("geo.Load failed: %v", err)
	}

	deps := &Deps{
		Msg:            messaging.NewMockService(),
		Store:          st,
		Wallets:        mgr,
		Verifier:       sms.NewMemoryVerifier(),
		Media:          &stubUploader{url: "https://media.example.com/photo.jpg"},
		Geo:            idx,
		Loc:            loc,
		RewardCurrency: "RNT",
	}

	sessions := session.NewInMemoryStore()
	eng, err := engine.New(sessions,
		NewIntakeConversation(deps),
		NewWalletConversation(deps),
		NewSettingsConversation(deps),
		NewListingConversation(deps),
	)
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}

	return &testBot{
		svc:      deps.Msg.(*messaging.MockService),
		store:    inmem,
		sessions: sessions,
		chain:    ch,
		wallets:  mgr,
		verifier: deps.Verifier.(*sms.MemoryVerifier),
		engine:   eng,
	}
}

// fund creates the user's wallet and credits it on the fake chain.
func (b *testBot) fund(t *testing.T, balance float64) string {
	t.Helper()
	w, err := b.wallets.Create(context.Background(), testUser)
	if err != nil {
		t.Fatalf("wallet create failed: %v", err)
	}
	b.chain.balances[w.Address] = balance
	return w.Address
}

// say injects a text message and dispatches the resulting event.
func (b *testBot) say(t *testing.T, text string) error {
	t.Helper()
	b.svc.Inject(models.Event{UserID: testUser, Kind: models.EventText, Text: text, Time: time.Now().Unix()})
	return b.engine.Dispatch(context.Background(), <-b.svc.Events())
}

// sendImage injects an image event pointing at a throwaway file.
func (b *testBot) sendImage(t *testing.T) error {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("img"), 0644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	b.svc.Inject(models.Event{UserID: testUser, Kind: models.EventImage, MediaPath: path, Time: time.Now().Unix()})
	return b.engine.Dispatch(context.Background(), <-b.svc.Events())
}

func (b *testBot) mustSay(t *testing.T, text string) {
	t.Helper()
	if err := b.say(t, text); err != nil {
		t.Fatalf("dispatch of %q failed: %v", text, err)
	}
}

func (b *testBot) state(t *testing.T, flow models.FlowType) models.StateType {
	t.Helper()
	state, err := b.sessions.GetCurrentState(context.Background(), testUser, flow)
	if err != nil {
		t.Fatalf("GetCurrentState failed: %v", err)
	}
	return state
}

func (b *testBot) lastBody(t *testing.T) string {
	t.Helper()
	last := b.svc.LastSent()
	if last == nil {
		t.Fatal("no message was sent")
	}
	return last.Body
}

// walkToAge drives the intake flow from /newcase to the AGE state.
func (b *testBot) walkToAge(t *testing.T) {
	t.Helper()
	b.mustSay(t, "/newcase")
	b.mustSay(t, "Ana Perez")
	b.mustSay(t, "+1 555 000 1234")
	b.mustSay(t, b.verifier.LastCode(testUser))
	b.mustSay(t, "1") // accept disclaimer
	b.mustSay(t, "2.0")
	b.mustSay(t, "Luis Perez")
	b.mustSay(t, "brother")
	if err := b.sendImage(t); err != nil {
		t.Fatalf("photo dispatch failed: %v", err)
	}
	b.mustSay(t, "Lima")
	b.mustSay(t, "1") // sex: male
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeAge {
		t.Fatalf("expected AGE state, got %s", got)
	}
}

// walkToTransferConfirm drives the intake flow from /newcase to the final
// transfer confirmation prompt.
func (b *testBot) walkToTransferConfirm(t *testing.T) {
	t.Helper()
	b.walkToAge(t)
	b.mustSay(t, "20")
	b.mustSay(t, "black")
	b.mustSay(t, "brown")
	b.mustSay(t, "170")
	b.mustSay(t, "60")
	b.mustSay(t, "scar on left arm")
	b.mustSay(t, "ran away from home")
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeRewardConfirm {
		t.Fatalf("expected REWARD_CONFIRM, got %s", got)
	}
	b.mustSay(t, "1") // confirm reward
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeTransferConfirm {
		t.Fatalf("expected TRANSFER_CONFIRM, got %s", got)
	}
}

func TestIntakeFullWalkthrough(t *testing.T) {
	b := newTestBot(t)
	b.fund(t, 3.0)
	b.walkToTransferConfirm(t)
	b.mustSay(t, "1") // confirm transfer

	if got := b.state(t, models.FlowTypeIntake); got != "" {
		t.Errorf("expected intake session cleared, got state %s", got)
	}
	if b.chain.txCount != 1 {
		t.Errorf("expected exactly one escrow transfer, got %d", b.chain.txCount)
	}

	cases, err := b.store.ListCasesByOwner(testUser)
	if err != nil {
		t.Fatalf("ListCasesByOwner failed: %v", err)
	}
	if len(cases) != 1 {
		t.Fatalf("expected one case, got %d", len(cases))
	}
	c := cases[0]
	if c.Status != models.CaseStatusAdvertised {
		t.Errorf("expected advertised case, got %s", c.Status)
	}
	if c.EscrowTxID != "tx-1" {
		t.Errorf("expected escrow tx recorded, got %q", c.EscrowTxID)
	}
	if c.ReporterName != "Ana Perez" || c.SubjectName != "Luis Perez" || c.Relation != "brother" {
		t.Errorf("identity fields wrong: %+v", c)
	}
	if c.MobileNumber != testUser {
		t.Errorf("expected verified mobile %s, got %s", testUser, c.MobileNumber)
	}
	if c.PhotoURL != "https://media.example.com/photo.jpg" {
		t.Errorf("photo URL not recorded: %q", c.PhotoURL)
	}
	if c.LastSeenCity != "Lima" || c.LastSeenCountry != "Peru" {
		t.Errorf("last seen wrong: %s, %s", c.LastSeenCity, c.LastSeenCountry)
	}
	if c.Sex != "male" || c.Age != 20 || c.HairColor != "black" || c.EyeColor != "brown" {
		t.Errorf("description fields wrong: %+v", c)
	}
	if c.HeightCm != 170 || c.WeightKg != 60 {
		t.Errorf("measurements wrong: %+v", c)
	}
	if c.RewardAmount != 2.0 || c.RewardCurrency != "RNT" {
		t.Errorf("reward wrong: %+v", c)
	}

	numbers, _ := b.store.ListMobileNumbers(testUser)
	if len(numbers) != 1 || !numbers[0].Verified {
		t.Errorf("expected one verified mobile number, got %+v", numbers)
	}
}

// flakyStore fails a configured number of calls before delegating.
type flakyStore struct {
	store.Store
	failDraftSaves int
	failAdvertise  int
}

func (s *flakyStore) SaveDraftCase(c models.Case) error {
	if s.failDraftSaves > 0 {
		s.failDraftSaves--
		return errors.New("storage unreachable")
	}
	return s.Store.SaveDraftCase(c)
}

func (s *flakyStore) MarkCaseAdvertised(id, txID string) error {
	if s.failAdvertise > 0 {
		s.failAdvertise--
		return errors.New("storage unreachable")
	}
	return s.Store.MarkCaseAdvertised(id, txID)
}

func TestIntakeTransferRetriesAfterStoreFailure(t *testing.T) {
	fs := &flakyStore{}
	b := newTestBotWrapped(t, func(s store.Store) store.Store {
		fs.Store = s
		return fs
	})
	b.fund(t, 3.0)
	b.walkToTransferConfirm(t)

	fs.failDraftSaves = 1
	if err := b.say(t, "1"); err == nil {
		t.Fatal("expected dispatch error while storage is down")
	}
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeTransferConfirm {
		t.Fatalf("failed confirmation must stay in TRANSFER_CONFIRM, got %s", got)
	}
	if b.chain.txCount != 0 {
		t.Fatalf("no money may move before the case is on record, got %d transfers", b.chain.txCount)
	}

	// The confirmation prompt is still live, so the same reply retries it.
	b.mustSay(t, "1")
	if b.chain.txCount != 1 {
		t.Errorf("expected exactly one escrow transfer, got %d", b.chain.txCount)
	}
	cases, err := b.store.ListCasesByOwner(testUser)
	if err != nil || len(cases) != 1 {
		t.Fatalf("expected one case after retry, got %d (err %v)", len(cases), err)
	}
	if cases[0].Status != models.CaseStatusAdvertised || cases[0].EscrowTxID != "tx-1" {
		t.Errorf("retry must finish the promotion, got %+v", cases[0])
	}
}

func TestIntakeTransferNotRepeatedOnRetry(t *testing.T) {
	fs := &flakyStore{}
	b := newTestBotWrapped(t, func(s store.Store) store.Store {
		fs.Store = s
		return fs
	})
	b.fund(t, 3.0)
	b.walkToTransferConfirm(t)

	fs.failAdvertise = 1
	if err := b.say(t, "1"); err == nil {
		t.Fatal("expected dispatch error while storage is down")
	}
	if b.chain.txCount != 1 {
		t.Fatalf("expected the transfer to have been submitted once, got %d", b.chain.txCount)
	}
	cases, err := b.store.ListCasesByOwner(testUser)
	if err != nil || len(cases) != 1 {
		t.Fatalf("expected the draft case on record, got %d (err %v)", len(cases), err)
	}
	if cases[0].Status != models.CaseStatusDraft {
		t.Fatalf("case must still be a draft after the failed promotion, got %s", cases[0].Status)
	}

	b.mustSay(t, "1")
	if b.chain.txCount != 1 {
		t.Errorf("retry must not move money again, got %d transfers", b.chain.txCount)
	}
	cases, _ = b.store.ListCasesByOwner(testUser)
	if len(cases) != 1 || cases[0].Status != models.CaseStatusAdvertised || cases[0].EscrowTxID != "tx-1" {
		t.Errorf("retry must finish the promotion, got %+v", cases)
	}
	if got := b.state(t, models.FlowTypeIntake); got != "" {
		t.Errorf("expected intake session cleared, got state %s", got)
	}
}

func TestIntakeConfirmationBalanceRecheck(t *testing.T) {
	b := newTestBot(t)
	addr := b.fund(t, 3.0)
	b.walkToAge(t)
	b.mustSay(t, "20")
	b.mustSay(t, "black")
	b.mustSay(t, "brown")
	b.mustSay(t, "170")
	b.mustSay(t, "60")
	b.mustSay(t, "scar on left arm")

	// The balance dropped below the pledge since it was made.
	b.chain.balances[addr] = 1.5
	b.mustSay(t, "ran away from home")
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeRewardAmount {
		t.Fatalf("shrunken balance must send the user back to REWARD_AMOUNT, got %s", got)
	}
	if b.chain.txCount != 0 {
		t.Errorf("no transfer may happen on a failed re-check, got %d", b.chain.txCount)
	}

	// A pledge the balance still covers goes through.
	b.mustSay(t, "1.0")
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeSubjectName {
		t.Fatalf("covered pledge must advance, got %s", got)
	}
}

func TestIntakeAgeRejectsNonNumeric(t *testing.T) {
	b := newTestBot(t)
	b.fund(t, 3.0)
	b.walkToAge(t)

	b.mustSay(t, "twenty")
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeAge {
		t.Fatalf("non-numeric age must re-prompt, got state %s", got)
	}
	if !strings.Contains(b.lastBody(t), "positive number") {
		t.Errorf("expected numeric re-prompt, got %q", b.lastBody(t))
	}

	b.mustSay(t, "20")
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeHair {
		t.Fatalf("valid age must advance to HAIR, got %s", got)
	}
}

func TestIntakeRewardExceedingBalanceRejected(t *testing.T) {
	b := newTestBot(t)
	addr := b.fund(t, 1.5)

	b.mustSay(t, "/newcase")
	b.mustSay(t, "Ana Perez")
	b.mustSay(t, "+1 555 000 1234")
	b.mustSay(t, b.verifier.LastCode(testUser))
	b.mustSay(t, "1")

	b.mustSay(t, "2.0")
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeRewardAmount {
		t.Fatalf("reward above balance must re-prompt, got state %s", got)
	}

	// Funding the wallet makes the same pledge acceptable.
	b.chain.balances[addr] = 3.0
	b.mustSay(t, "2.0")
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeSubjectName {
		t.Fatalf("covered reward must advance, got state %s", got)
	}
}

func TestIntakeWithoutWalletEnds(t *testing.T) {
	b := newTestBot(t)

	b.mustSay(t, "/newcase")
	b.mustSay(t, "Ana Perez")
	b.mustSay(t, "+1 555 000 1234")
	b.mustSay(t, b.verifier.LastCode(testUser))
	b.mustSay(t, "1")

	if got := b.state(t, models.FlowTypeIntake); got != "" {
		t.Errorf("intake without a wallet must end, got state %s", got)
	}
	if !strings.Contains(b.lastBody(t), "/wallet") {
		t.Errorf("expected pointer to /wallet, got %q", b.lastBody(t))
	}
}

func TestIntakeWrongCodeReprompts(t *testing.T) {
	b := newTestBot(t)
	b.fund(t, 3.0)

	b.mustSay(t, "/newcase")
	b.mustSay(t, "Ana Perez")
	b.mustSay(t, "+1 555 000 1234")

	b.mustSay(t, "000000x")
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeCodeVerify {
		t.Fatalf("wrong code must re-prompt, got state %s", got)
	}
	b.mustSay(t, b.verifier.LastCode(testUser))
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeDisclaimer {
		t.Fatalf("correct code must advance, got state %s", got)
	}
}

func TestIntakeCancelClearsScratch(t *testing.T) {
	b := newTestBot(t)
	b.fund(t, 3.0)

	b.mustSay(t, "/newcase")
	b.mustSay(t, "Ana Perez")
	draft, err := b.sessions.GetStateData(context.Background(), testUser, models.FlowTypeIntake, models.DataKeyCaseDraft)
	if err != nil || draft == "" {
		t.Fatalf("expected draft scratch before cancel, got %q err %v", draft, err)
	}

	b.mustSay(t, "/cancel")
	if got := b.state(t, models.FlowTypeIntake); got != "" {
		t.Errorf("cancel must clear the session, got state %s", got)
	}
	draft, _ = b.sessions.GetStateData(context.Background(), testUser, models.FlowTypeIntake, models.DataKeyCaseDraft)
	if draft != "" {
		t.Errorf("cancel must clear scratch, got %q", draft)
	}

	// Reentry starts a fresh intake.
	b.mustSay(t, "/newcase")
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeName {
		t.Errorf("reentry after cancel must restart, got state %s", got)
	}
}

func TestIntakeDisclaimerDeclined(t *testing.T) {
	b := newTestBot(t)
	b.fund(t, 3.0)

	b.mustSay(t, "/newcase")
	b.mustSay(t, "Ana Perez")
	b.mustSay(t, "+1 555 000 1234")
	b.mustSay(t, b.verifier.LastCode(testUser))
	b.mustSay(t, "2") // decline

	if got := b.state(t, models.FlowTypeIntake); got != "" {
		t.Errorf("decline must end the flow, got state %s", got)
	}
	cases, _ := b.store.ListCasesByOwner(testUser)
	if len(cases) != 0 {
		t.Errorf("declined intake must not create a case, got %d", len(cases))
	}
}

func TestIntakeAmbiguousCityOffersOptions(t *testing.T) {
	b := newTestBot(t)
	b.fund(t, 3.0)

	b.mustSay(t, "/newcase")
	b.mustSay(t, "Ana Perez")
	b.mustSay(t, "+1 555 000 1234")
	b.mustSay(t, b.verifier.LastCode(testUser))
	b.mustSay(t, "1")
	b.mustSay(t, "2.0")
	b.mustSay(t, "Luis Perez")
	b.mustSay(t, "brother")
	if err := b.sendImage(t); err != nil {
		t.Fatalf("photo dispatch failed: %v", err)
	}

	// "Ma" prefixes several cities (Madrid, Manila, Marseille...).
	b.mustSay(t, "Ma")
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeLastSeen {
		t.Fatalf("ambiguous city must stay in LAST_SEEN, got %s", got)
	}
	last := b.svc.LastSent()
	if last == nil || len(last.Buttons) < 2 {
		t.Fatalf("expected candidate options, got %+v", last)
	}

	b.mustSay(t, "1") // pick the first candidate
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeSex {
		t.Fatalf("picking a candidate must advance to SEX, got %s", got)
	}
}

func TestWalletFlowCreateAndBalance(t *testing.T) {
	b := newTestBot(t)

	b.mustSay(t, "/wallet")
	b.mustSay(t, "1") // create
	b.mustSay(t, "1") // confirm
	if got := b.state(t, models.FlowTypeWallet); got != "" {
		t.Fatalf("wallet flow must end after create, got state %s", got)
	}
	w, err := b.store.GetWallet(testUser)
	if err != nil || w == nil {
		t.Fatalf("wallet not persisted: %v", err)
	}
	b.chain.balances[w.Address] = 1.25

	// Creating again is refused.
	b.mustSay(t, "/wallet")
	b.mustSay(t, "1")
	if !strings.Contains(b.lastBody(t), w.Address) {
		t.Errorf("expected existing address in refusal, got %q", b.lastBody(t))
	}
	if got := b.state(t, models.FlowTypeWallet); got != "" {
		t.Fatalf("refused create must end the flow, got state %s", got)
	}

	b.mustSay(t, "/wallet")
	b.mustSay(t, "2") // balance
	if !strings.Contains(b.lastBody(t), "1.2500") {
		t.Errorf("expected balance in reply, got %q", b.lastBody(t))
	}
}

func TestSettingsLanguagePersists(t *testing.T) {
	b := newTestBot(t)

	b.mustSay(t, "/settings")
	b.mustSay(t, "1") // language
	// The language options list the default first; "es" is offered after it.
	last := b.svc.LastSent()
	esIndex := 0
	for i, btn := range last.Buttons {
		if btn.Data == "lang:es" {
			esIndex = i + 1
		}
	}
	if esIndex == 0 {
		t.Fatalf("expected es among language options, got %+v", last.Buttons)
	}
	b.mustSay(t, string(rune('0'+esIndex)))

	pref, err := b.store.GetUserPreference(testUser)
	if err != nil || pref == nil {
		t.Fatalf("preference not persisted: %v", err)
	}
	if pref.Language != "es" {
		t.Errorf("expected language es, got %q", pref.Language)
	}

	// Subsequent prompts use the stored language.
	b.mustSay(t, "/wallet")
	if !strings.Contains(strings.ToLower(b.lastBody(t)), "billetera") {
		t.Errorf("expected Spanish wallet menu, got %q", b.lastBody(t))
	}
	b.mustSay(t, "/cancel")
}

func TestSettingsLocation(t *testing.T) {
	b := newTestBot(t)

	b.mustSay(t, "/settings")
	b.mustSay(t, "2") // location
	b.mustSay(t, "Nowhereland")
	if got := b.state(t, models.FlowTypeSettings); got != models.StateSettingsCountry {
		t.Fatalf("unknown country must re-prompt, got %s", got)
	}
	b.mustSay(t, "Peru")
	b.mustSay(t, "Lima")

	pref, err := b.store.GetUserPreference(testUser)
	if err != nil || pref == nil {
		t.Fatalf("preference not persisted: %v", err)
	}
	if pref.Country != "Peru" || pref.City != "Lima" {
		t.Errorf("location wrong: %+v", pref)
	}
}

func seedCase(t *testing.T, b *testBot, id, owner, subject string) {
	t.Helper()
	now := time.Now()
	err := b.store.CreateCase(models.Case{
		ID: id, OwnerID: owner, Status: models.CaseStatusAdvertised,
		SubjectName: subject, RewardAmount: 1, RewardCurrency: "RNT",
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed case failed: %v", err)
	}
}

func TestListingViewAndEdit(t *testing.T) {
	b := newTestBot(t)
	seedCase(t, b, "c1", testUser, "Luis Perez")

	b.mustSay(t, "/mycases")
	b.mustSay(t, "1") // open the only case
	if got := b.state(t, models.FlowTypeListing); got != models.StateListingView {
		t.Fatalf("expected VIEW, got %s", got)
	}

	b.mustSay(t, "edit")
	last := b.svc.LastSent()
	ageIndex := 0
	for i, btn := range last.Buttons {
		if btn.Data == "field:age" {
			ageIndex = i + 1
		}
	}
	if ageIndex == 0 {
		t.Fatalf("expected age among editable fields, got %+v", last.Buttons)
	}
	b.mustSay(t, string(rune('0'+ageIndex)))

	b.mustSay(t, "abc")
	if got := b.state(t, models.FlowTypeListing); got != models.StateListingEditValue {
		t.Fatalf("invalid numeric value must re-prompt, got %s", got)
	}
	b.mustSay(t, "17")
	if got := b.state(t, models.FlowTypeListing); got != models.StateListingView {
		t.Fatalf("saved edit must return to VIEW, got %s", got)
	}

	c, _ := b.store.GetCase("c1")
	if c.Age != 17 {
		t.Errorf("edit not applied, age = %d", c.Age)
	}
}

func TestListingEditRecoversFromStaleFieldSelection(t *testing.T) {
	b := newTestBot(t)
	seedCase(t, b, "c1", testUser, "Luis Perez")

	b.mustSay(t, "/mycases")
	b.mustSay(t, "1")
	b.mustSay(t, "edit")
	last := b.svc.LastSent()
	ageIndex := 0
	for i, btn := range last.Buttons {
		if btn.Data == "field:age" {
			ageIndex = i + 1
		}
	}
	if ageIndex == 0 {
		t.Fatalf("expected age among editable fields, got %+v", last.Buttons)
	}
	b.mustSay(t, string(rune('0'+ageIndex)))

	// Corrupt the stored field selection before the value arrives.
	err := b.sessions.SetStateData(context.Background(), testUser, models.FlowTypeListing, models.DataKeyEditField, "bogus")
	if err != nil {
		t.Fatalf("SetStateData failed: %v", err)
	}

	b.mustSay(t, "17")
	if got := b.state(t, models.FlowTypeListing); got != models.StateListingEditField {
		t.Fatalf("stale field selection must re-open the field menu, got %s", got)
	}
}

func TestListingDeniesForeignCase(t *testing.T) {
	b := newTestBot(t)
	seedCase(t, b, "c1", testUser, "Luis Perez")
	seedCase(t, b, "c2", "19998887777", "Someone Else")

	b.mustSay(t, "/mycases")
	// Forge an option event pointing at the foreign case.
	b.svc.Inject(models.Event{UserID: testUser, Kind: models.EventOption, Data: "case:c2", Time: time.Now().Unix()})
	if err := b.engine.Dispatch(context.Background(), <-b.svc.Events()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if got := b.state(t, models.FlowTypeListing); got != models.StateListingList {
		t.Errorf("denied open must stay in LIST, got %s", got)
	}
	if !strings.Contains(b.lastBody(t), "not allowed") {
		t.Errorf("expected denial message, got %q", b.lastBody(t))
	}
}

func TestListingEmpty(t *testing.T) {
	b := newTestBot(t)
	b.mustSay(t, "/mycases")
	if got := b.state(t, models.FlowTypeListing); got != "" {
		t.Errorf("empty listing must end, got state %s", got)
	}
	if !strings.Contains(b.lastBody(t), "/newcase") {
		t.Errorf("expected pointer to /newcase, got %q", b.lastBody(t))
	}
}

func TestWalletCommandInterruptsIntake(t *testing.T) {
	b := newTestBot(t)
	b.fund(t, 3.0)

	b.mustSay(t, "/newcase")
	b.mustSay(t, "Ana Perez")
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeMobileSelect {
		t.Fatalf("expected MOBILE_SELECT, got %s", got)
	}

	// A command for another conversation starts it without disturbing intake.
	b.mustSay(t, "/wallet")
	if got := b.state(t, models.FlowTypeWallet); got != models.StateWalletMenu {
		t.Fatalf("expected wallet menu to open, got %s", got)
	}
	if got := b.state(t, models.FlowTypeIntake); got != models.StateIntakeMobileSelect {
		t.Errorf("intake state must be untouched, got %s", got)
	}
}
