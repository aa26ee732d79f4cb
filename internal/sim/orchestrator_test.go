package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"simulearn/internal/tester"
)

type scriptedTurn struct {
	res TurnResult
	err error
}

// scriptedTurns feeds canned turn results in FIFO order and records every
// request it saw.
type scriptedTurns struct {
	mu    sync.Mutex
	queue []scriptedTurn
	calls []TurnRequest
}

func (s *scriptedTurns) push(res TurnResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scriptedTurn{res: res})
}

func (s *scriptedTurns) pushErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scriptedTurn{err: err})
}

func (s *scriptedTurns) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedTurns) Generate(_ context.Context, req TurnRequest) (TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if len(s.queue) == 0 {
		return TurnResult{Description: "the story continues", Options: []string{"go on"}}, nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next.res, next.err
}

// scriptedVisuals records visual calls. Calls whose description has a gate
// block until the gate is closed, so tests can order completions.
type scriptedVisuals struct {
	mu         sync.Mutex
	imageCalls []string
	sceneSeeds []*SceneConfig
	imageErr   error
	sceneCfg   *SceneConfig
	gates      map[string]chan struct{}
}

func (v *scriptedVisuals) gate(description string) chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gates == nil {
		v.gates = make(map[string]chan struct{})
	}
	ch := make(chan struct{})
	v.gates[description] = ch
	return ch
}

func (v *scriptedVisuals) waitGate(description string) {
	v.mu.Lock()
	ch := v.gates[description]
	v.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

func (v *scriptedVisuals) GenerateImage(_ context.Context, description string, style VisualStyle) ([]byte, error) {
	if style == VisualSchematic {
		return nil, nil
	}
	v.waitGate(description)
	v.mu.Lock()
	v.imageCalls = append(v.imageCalls, description)
	err := v.imageErr
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []byte{0x89, 0x50}, nil
}

func (v *scriptedVisuals) GenerateSceneConfig(_ context.Context, _, description string, previous *SceneConfig) (SceneConfig, error) {
	v.waitGate(description)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sceneSeeds = append(v.sceneSeeds, previous.Clone())
	if v.sceneCfg != nil {
		return *v.sceneCfg.Clone(), nil
	}
	if previous != nil {
		return *previous.Clone(), nil
	}
	return BaselineScene("test"), nil
}

func (v *scriptedVisuals) imageCallCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.imageCalls)
}

func (v *scriptedVisuals) sceneCallCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.sceneSeeds)
}

type fakeArchive struct {
	mu   sync.Mutex
	recs []SavedRecord
}

func (a *fakeArchive) Save(_ context.Context, rec SavedRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
	return nil
}

func (a *fakeArchive) saved() []SavedRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]SavedRecord(nil), a.recs...)
}

type fakeMedia struct {
	mu   sync.Mutex
	puts []string
}

func (m *fakeMedia) Put(_ context.Context, runID, name string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts = append(m.puts, runID+"/"+name)
	return nil
}

func (m *fakeMedia) URL(_ context.Context, _, _ string) (string, error) {
	return "", nil
}

func (m *fakeMedia) putNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.puts...)
}

type runFixture struct {
	run     *Orchestrator
	turns   *scriptedTurns
	visuals *scriptedVisuals
	archive *fakeArchive
	media   *fakeMedia
}

func newRunFixture(kind ScenarioKind) *runFixture {
	f := &runFixture{
		turns:   &scriptedTurns{},
		visuals: &scriptedVisuals{},
		archive: &fakeArchive{},
		media:   &fakeMedia{},
	}
	f.run = NewOrchestrator(Options{
		RunID:   "run-test",
		Kind:    kind,
		Topic:   "pendulum motion",
		Turns:   f.turns,
		Visuals: f.visuals,
		Archive: f.archive,
		Media:   f.media,
		Now:     func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	return f
}

func endedTurn(description string) TurnResult {
	return TurnResult{
		Description: description,
		IsEnded:     true,
		Report: &AnalysisReport{
			Score:        82,
			Evaluation:   "solid reasoning",
			KeyLearnings: []string{"momentum is conserved"},
			Suggestions:  "try varying the mass",
		},
	}
}

func TestInitializeScientificWaitsForVisualChoice(t *testing.T) {
	f := newRunFixture(ScenarioPhysics)
	f.turns.push(TurnResult{Description: "A ball rests on an incline", Options: []string{"push", "measure", "wait"}})

	f.run.Initialize(context.Background())
	f.run.Wait()

	snap := f.run.Snapshot()
	tester.True(t, snap.WaitingForVisualChoice)
	tester.Eq(t, snap.VisualStyle, VisualUnset)
	tester.Eq(t, len(snap.History), 1)
	tester.Eq(t, snap.History[0].Role, RoleModel)
	tester.Eq(t, len(snap.Options), 3)
	tester.Eq(t, f.visuals.imageCallCount(), 0, "no visual before the choice")
	tester.Eq(t, f.visuals.sceneCallCount(), 0, "no visual before the choice")
}

func TestInitializeArtisticStartsImageImmediately(t *testing.T) {
	f := newRunFixture(ScenarioLiterature)
	f.turns.push(TurnResult{Description: "The study smells of old paper", Options: []string{"read"}})

	f.run.Initialize(context.Background())
	f.run.Wait()

	snap := f.run.Snapshot()
	tester.False(t, snap.WaitingForVisualChoice)
	tester.Eq(t, snap.VisualStyle, VisualArtistic)
	tester.Eq(t, f.visuals.imageCallCount(), 1)
	tester.False(t, snap.IsImageLoading)
	tester.True(t, strings.HasSuffix(snap.ImageURL, "turn-1.png"), "image reference set")
}

func TestInitializeRunsOnce(t *testing.T) {
	f := newRunFixture(ScenarioLiterature)
	f.run.Initialize(context.Background())
	f.run.Initialize(context.Background())
	f.run.Wait()

	tester.Eq(t, f.turns.callCount(), 1)
	tester.Eq(t, len(f.run.Snapshot().History), 1)
}

func TestInitializeFailureLeavesRetryableState(t *testing.T) {
	f := newRunFixture(ScenarioLiterature)
	f.turns.pushErr(fmt.Errorf("upstream unavailable"))

	f.run.Initialize(context.Background())
	f.run.Wait()

	snap := f.run.Snapshot()
	tester.Eq(t, snap.Description, "Initialization failed. Check your connection and retry.")
	tester.Eq(t, len(snap.Options), 0)
	tester.False(t, snap.IsLoading)
	tester.False(t, snap.IsEnded)
	tester.Eq(t, f.visuals.imageCallCount(), 0)
}

func TestInitializeFailureKeepsArtisticPipeline(t *testing.T) {
	f := newRunFixture(ScenarioLiterature)
	f.turns.pushErr(fmt.Errorf("upstream unavailable"))

	f.run.Initialize(context.Background())
	f.run.Wait()

	snap := f.run.Snapshot()
	tester.Eq(t, snap.VisualStyle, VisualArtistic, "style locked in despite the failed first turn")
	tester.False(t, snap.WaitingForVisualChoice)
	tester.Eq(t, f.visuals.imageCallCount(), 0)

	// A recovered run generates visuals again.
	f.turns.push(TurnResult{Description: "the study comes into focus", Options: []string{"read"}, ShouldUpdateVisuals: true})
	f.run.HandleAction(context.Background(), "look around")
	f.run.Wait()

	snap = f.run.Snapshot()
	tester.Eq(t, f.visuals.imageCallCount(), 1)
	tester.True(t, strings.HasSuffix(snap.ImageURL, "turn-1.png"), "image reference set after recovery")
}

func TestInitializeFailureStillOffersVisualChoice(t *testing.T) {
	f := newRunFixture(ScenarioPhysics)
	f.turns.pushErr(fmt.Errorf("upstream unavailable"))

	f.run.Initialize(context.Background())
	f.run.Wait()

	tester.True(t, f.run.Snapshot().WaitingForVisualChoice, "choice window opens despite the failed first turn")

	f.run.ChooseVisualization(VisualSchematic)
	f.run.Wait()

	snap := f.run.Snapshot()
	tester.Eq(t, snap.VisualStyle, VisualSchematic)
	tester.Eq(t, f.visuals.sceneCallCount(), 1)
	tester.True(t, snap.Scene != nil)
}

func TestHandleActionAppendsExactlyTwoEntries(t *testing.T) {
	f := newRunFixture(ScenarioCustom)
	f.run.Initialize(context.Background())

	for i := 0; i < 3; i++ {
		before := f.run.Snapshot().History
		f.run.HandleAction(context.Background(), fmt.Sprintf("action %d", i))
		after := f.run.Snapshot().History

		tester.Eq(t, len(after), len(before)+2)
		// Prior entries are never mutated or reordered.
		tester.Eq(t, after[:len(before)], before)
		tester.Eq(t, after[len(before)].Role, RoleUser)
		tester.Eq(t, after[len(before)+1].Role, RoleModel)
	}
	f.run.Wait()
}

func TestHandleActionPreconditionsAreNoOps(t *testing.T) {
	f := newRunFixture(ScenarioPhysics)
	f.turns.push(TurnResult{Description: "opening", Options: []string{"a"}})
	f.run.Initialize(context.Background())
	calls := f.turns.callCount()

	// Choice still pending.
	before := f.run.Snapshot()
	f.run.HandleAction(context.Background(), "push")
	tester.Eq(t, f.turns.callCount(), calls)
	tester.Eq(t, f.run.Snapshot().History, before.History)

	// Empty and whitespace-only actions.
	f.run.ChooseVisualization(VisualSchematic)
	f.run.HandleAction(context.Background(), "")
	f.run.HandleAction(context.Background(), "   \t ")
	tester.Eq(t, f.turns.callCount(), calls)

	// Ended run.
	f.turns.push(endedTurn("the run concludes"))
	f.run.HandleAction(context.Background(), "finish")
	tester.True(t, f.run.Snapshot().IsEnded)
	f.run.HandleAction(context.Background(), "one more")
	tester.Eq(t, f.turns.callCount(), calls+1)
	f.run.Wait()
}

func TestHandleActionFailureRollsBackUserEntry(t *testing.T) {
	f := newRunFixture(ScenarioCustom)
	f.run.Initialize(context.Background())
	before := f.run.Snapshot()

	f.turns.pushErr(fmt.Errorf("deadline exceeded"))
	f.run.HandleAction(context.Background(), "open the door")
	f.run.Wait()

	snap := f.run.Snapshot()
	tester.Eq(t, snap.History, before.History, "no partial application")
	tester.Eq(t, snap.Options, before.Options)
	tester.False(t, snap.IsEnded)
	tester.False(t, snap.IsLoading)
	tester.Eq(t, snap.Notice, "Connection unstable. Try a different action.")

	// The notice clears on the next successful turn.
	f.run.HandleAction(context.Background(), "open the door")
	tester.Eq(t, f.run.Snapshot().Notice, "")
	f.run.Wait()
}

func TestVisualSkipPolicy(t *testing.T) {
	f := newRunFixture(ScenarioLiterature)
	f.run.Initialize(context.Background())
	f.run.Wait()
	calls := f.visuals.imageCallCount()

	f.turns.push(TurnResult{Description: "nothing visible changes", Options: []string{"a"}})
	f.run.HandleAction(context.Background(), "listen")
	f.run.Wait()

	tester.Eq(t, f.visuals.imageCallCount(), calls, "no visual for shouldUpdateVisuals=false")
	tester.Eq(t, f.visuals.sceneCallCount(), 0)
}

func TestVisualRegeneratedOnEndEvenWithoutFlag(t *testing.T) {
	f := newRunFixture(ScenarioLiterature)
	f.run.Initialize(context.Background())
	f.run.Wait()
	calls := f.visuals.imageCallCount()

	f.turns.push(endedTurn("the tale closes"))
	f.run.HandleAction(context.Background(), "end it")
	f.run.Wait()

	tester.Eq(t, f.visuals.imageCallCount(), calls+1)
}

func TestSchematicModeNeverCallsImageGeneration(t *testing.T) {
	f := newRunFixture(ScenarioChemistry)
	f.turns.push(TurnResult{Description: "two beakers on a bench", Options: []string{"mix"}})
	f.run.Initialize(context.Background())

	f.run.ChooseVisualization(VisualSchematic)
	f.run.Wait()
	tester.Eq(t, f.visuals.sceneCallCount(), 1)
	tester.True(t, f.visuals.sceneSeeds[0] == nil, "first scene call has no seed")

	f.turns.push(TurnResult{Description: "the mixture fizzes", Options: []string{"observe"}, ShouldUpdateVisuals: true})
	f.run.HandleAction(context.Background(), "mix them")
	f.run.Wait()

	tester.Eq(t, f.visuals.sceneCallCount(), 2)
	tester.True(t, f.visuals.sceneSeeds[1] != nil, "later scene calls are seeded")
	tester.Eq(t, f.visuals.imageCallCount(), 0, "schematic runs never generate images")
}

func TestVisualizationChoiceIsSticky(t *testing.T) {
	f := newRunFixture(ScenarioHistory)
	f.run.Initialize(context.Background())

	f.run.ChooseVisualization(VisualSchematic)
	f.run.ChooseVisualization(VisualArtistic)
	f.run.Wait()

	snap := f.run.Snapshot()
	tester.Eq(t, snap.VisualStyle, VisualSchematic)
	tester.False(t, snap.WaitingForVisualChoice)
	tester.Eq(t, f.visuals.imageCallCount(), 0)
}

func TestReportPersistedExactlyOnce(t *testing.T) {
	f := newRunFixture(ScenarioCustom)
	f.run.Initialize(context.Background())

	f.turns.push(endedTurn("the experiment concludes"))
	f.run.HandleAction(context.Background(), "wrap up")

	// Re-reading state after the end must not re-trigger archival.
	for i := 0; i < 5; i++ {
		_ = f.run.Snapshot()
	}
	f.run.HandleAction(context.Background(), "again")
	f.run.Wait()

	recs := f.archive.saved()
	tester.Eq(t, len(recs), 1)
	tester.Eq(t, recs[0].ScenarioKind, ScenarioCustom)
	tester.Eq(t, recs[0].Topic, "pendulum motion")
	tester.Eq(t, recs[0].Report.Score, 82)
	tester.Eq(t, len(recs[0].Transcript), len(f.run.Snapshot().History))
}

func TestReportRevealWaitsForFinalVisual(t *testing.T) {
	f := newRunFixture(ScenarioLiterature)
	f.run.Initialize(context.Background())
	f.run.Wait()

	final := endedTurn("the curtain falls")
	gate := f.visuals.gate(final.Description)
	f.turns.push(final)
	f.run.HandleAction(context.Background(), "finish")

	snap := f.run.Snapshot()
	tester.True(t, snap.IsEnded)
	tester.True(t, snap.Report != nil)
	tester.False(t, snap.ReportReady, "report held back while the final visual is in flight")
	tester.True(t, snap.Busy)

	close(gate)
	f.run.Wait()

	snap = f.run.Snapshot()
	tester.True(t, snap.ReportReady)
	tester.False(t, snap.Busy)
}

func TestStaleVisualResultIsDropped(t *testing.T) {
	f := newRunFixture(ScenarioLiterature)
	first := TurnResult{Description: "beat one", Options: []string{"a"}}
	gate1 := f.visuals.gate(first.Description)
	f.turns.push(first)
	f.run.Initialize(context.Background())

	second := TurnResult{Description: "beat two", Options: []string{"b"}, ShouldUpdateVisuals: true}
	gate2 := f.visuals.gate(second.Description)
	f.turns.push(second)
	f.run.HandleAction(context.Background(), "continue")

	// The newer job completes first; the older one arrives late and stale.
	close(gate2)
	waitUntil(t, func() bool { return !f.run.Snapshot().IsImageLoading })
	close(gate1)
	f.run.Wait()

	snap := f.run.Snapshot()
	tester.True(t, strings.HasSuffix(snap.ImageURL, "turn-2.png"), "latest turn's image wins")
	tester.Eq(t, f.media.putNames(), []string{"run-test/turn-2.png"}, "stale result never persisted")
}

func TestImageInlinedWithoutMediaStore(t *testing.T) {
	turns := &scriptedTurns{}
	visuals := &scriptedVisuals{}
	run := NewOrchestrator(Options{
		RunID:   "run-test",
		Kind:    ScenarioLiterature,
		Topic:   "pendulum motion",
		Turns:   turns,
		Visuals: visuals,
	})

	run.Initialize(context.Background())
	run.Wait()

	snap := run.Snapshot()
	tester.False(t, snap.IsImageLoading)
	tester.True(t, strings.HasPrefix(snap.ImageURL, "data:image/png;base64,"), "bytes committed inline without a store")
}

func TestSceneRecoveryKeepsPreviousConfig(t *testing.T) {
	f := newRunFixture(ScenarioPhysics)
	f.run.Initialize(context.Background())
	f.run.ChooseVisualization(VisualSchematic)
	f.run.Wait()

	before := f.run.Snapshot().Scene
	tester.True(t, before != nil)

	// The generator recovers to the seed on failure; the orchestrator must
	// store it unchanged.
	f.visuals.sceneCfg = nil
	f.turns.push(TurnResult{Description: "a gust of wind", Options: []string{"a"}, ShouldUpdateVisuals: true})
	f.run.HandleAction(context.Background(), "wait")
	f.run.Wait()

	tester.Eq(t, f.run.Snapshot().Scene, before)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
