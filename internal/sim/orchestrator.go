package sim

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

const noticeUnstable = "Connection unstable. Try a different action."

// Options wires one run's collaborators. Turns and Visuals are required.
// Archive and Media may be nil: without an archive the report is not
// persisted, and without a media store generated images are committed
// inline as data URLs.
type Options struct {
	RunID   string
	Kind    ScenarioKind
	Topic   string
	Context string

	Turns   TurnGenerator
	Visuals VisualGenerator
	Archive ArchiveSaver
	Media   MediaStore

	Now func() time.Time
}

// Orchestrator drives one run's session state machine. All state lives
// behind its mutex and is mutated only by the transition methods; callers
// observe it through immutable Snapshot copies. Visual generation and
// report archival run on background goroutines tagged with the turn they
// were dispatched for, so late results for superseded turns are dropped.
type Orchestrator struct {
	runID   string
	kind    ScenarioKind
	topic   string
	context string

	turns   TurnGenerator
	visuals VisualGenerator
	archive ArchiveSaver
	media   MediaStore
	now     func() time.Time

	mu sync.Mutex

	initialized            bool
	description            string
	history                []Message
	options                []string
	isLoading              bool
	isImageLoading         bool
	waitingForVisualChoice bool
	visualStyle            VisualStyle
	isEnded                bool
	imageURL               string
	sceneConfig            *SceneConfig
	report                 *AnalysisReport
	reportPersisted        bool
	notice                 string

	// turnSeq counts applied turns; visualSeq is the turnSeq of the latest
	// dispatched visual job. A completing job whose tag no longer matches
	// visualSeq is stale and must not touch state.
	turnSeq   uint64
	visualSeq uint64

	visualWG sync.WaitGroup
	saveWG   sync.WaitGroup

	subs map[chan Snapshot]struct{}
}

// Snapshot is an immutable copy of the run state, safe to hand to handlers
// and websocket writers. ReportReady stays false until the final visual
// settles, so the report reveal always follows the last scene or image.
type Snapshot struct {
	RunID        string       `json:"run_id"`
	ScenarioKind ScenarioKind `json:"scenario_kind"`
	Topic        string       `json:"topic"`

	Description            string          `json:"description"`
	History                []Message       `json:"history"`
	Options                []string        `json:"options"`
	IsLoading              bool            `json:"is_loading"`
	IsImageLoading         bool            `json:"is_image_loading"`
	WaitingForVisualChoice bool            `json:"waiting_for_visual_choice"`
	VisualStyle            VisualStyle     `json:"visual_style,omitempty"`
	IsEnded                bool            `json:"is_ended"`
	ImageURL               string          `json:"image_url,omitempty"`
	Scene                  *SceneConfig    `json:"scene,omitempty"`
	Report                 *AnalysisReport `json:"report,omitempty"`
	ReportReady            bool            `json:"report_ready"`
	Busy                   bool            `json:"busy"`
	Notice                 string          `json:"notice,omitempty"`
}

func NewOrchestrator(opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		runID:   opts.RunID,
		kind:    opts.Kind,
		topic:   strings.TrimSpace(opts.Topic),
		context: strings.TrimSpace(opts.Context),
		turns:   opts.Turns,
		visuals: opts.Visuals,
		archive: opts.Archive,
		media:   opts.Media,
		now:     now,
		subs:    make(map[chan Snapshot]struct{}),
	}
}

func (o *Orchestrator) RunID() string { return o.runID }

// Initialize runs the first turn with a synthetic start action. It fires at
// most once; repeat calls are no-ops. Scientific kinds then wait for the
// one-time visualization choice; everything else locks in the artistic
// style and starts image generation immediately. A failed first turn leaves
// a stable retryable state, never an error.
func (o *Orchestrator) Initialize(ctx context.Context) {
	o.mu.Lock()
	if o.initialized {
		o.mu.Unlock()
		return
	}
	o.initialized = true
	o.isLoading = true
	req := TurnRequest{
		ScenarioKind: o.kind,
		Topic:        o.topic,
		Context:      o.context,
		Action:       startAction,
	}
	o.mu.Unlock()
	o.broadcast()

	res, err := o.turns.Generate(ctx, req)

	o.mu.Lock()
	o.isLoading = false
	if err != nil {
		log.Printf("sim: run %s: initialization failed: %v", o.runID, err)
		o.description = initFailedDescription
		o.options = nil
		// The mode gating still applies so a run recovered through a later
		// action regains its visual pipeline.
		if IsScientific(o.kind) {
			o.waitingForVisualChoice = true
		} else {
			o.visualStyle = VisualArtistic
		}
		o.mu.Unlock()
		o.broadcast()
		return
	}
	o.applyTurnLocked(res)
	if IsScientific(o.kind) {
		o.waitingForVisualChoice = true
	} else {
		o.visualStyle = VisualArtistic
		o.dispatchVisualLocked()
	}
	o.mu.Unlock()
	o.broadcast()
}

// ChooseVisualization resolves the one-time style choice for scientific
// runs. The choice is sticky; calls outside the choice window or with an
// unset style are no-ops.
func (o *Orchestrator) ChooseVisualization(style VisualStyle) {
	o.mu.Lock()
	if !o.waitingForVisualChoice || (style != VisualArtistic && style != VisualSchematic) {
		o.mu.Unlock()
		return
	}
	o.waitingForVisualChoice = false
	o.visualStyle = style
	o.dispatchVisualLocked()
	o.mu.Unlock()
	o.broadcast()
}

// HandleAction advances the run by one turn. Violated preconditions (empty
// action, a turn already in flight, the run ended, or the visualization
// choice still pending) are silent no-ops. On upstream failure the appended
// user entry is rolled back so the state equals the pre-call state exactly,
// and a transient notice is surfaced instead.
func (o *Orchestrator) HandleAction(ctx context.Context, action string) {
	action = strings.TrimSpace(action)

	o.mu.Lock()
	if action == "" || !o.initialized || o.isLoading || o.isEnded || o.waitingForVisualChoice {
		o.mu.Unlock()
		return
	}
	o.history = append(o.history, Message{Role: RoleUser, Text: action})
	o.isLoading = true
	o.notice = ""
	req := TurnRequest{
		ScenarioKind: o.kind,
		Topic:        o.topic,
		Context:      o.context,
		History:      append([]Message(nil), o.history...),
		Action:       action,
	}
	o.mu.Unlock()
	o.broadcast()

	res, err := o.turns.Generate(ctx, req)

	o.mu.Lock()
	o.isLoading = false
	if err != nil {
		log.Printf("sim: run %s: turn generation failed: %v", o.runID, err)
		o.history = o.history[:len(o.history)-1]
		o.notice = noticeUnstable
		o.mu.Unlock()
		o.broadcast()
		return
	}
	o.applyTurnLocked(res)
	if res.ShouldUpdateVisuals || o.isEnded {
		o.dispatchVisualLocked()
	}
	o.mu.Unlock()
	o.broadcast()
}

// applyTurnLocked commits a successful turn result: model entry appended,
// options replaced, end flag raised monotonically, report captured and
// persisted once.
func (o *Orchestrator) applyTurnLocked(res TurnResult) {
	o.turnSeq++
	o.description = res.Description
	o.history = append(o.history, Message{Role: RoleModel, Text: res.Description})
	if res.IsEnded {
		o.isEnded = true
		o.options = nil
	} else {
		o.options = res.Options
	}
	if res.Report != nil && o.isEnded && o.report == nil {
		report := *res.Report
		o.report = &report
	}
	o.persistReportLocked()
}

// dispatchVisualLocked starts the visual job for the current turn on a
// background goroutine. The job carries the turn sequence it was dispatched
// for; only the latest dispatched job may apply its result.
func (o *Orchestrator) dispatchVisualLocked() {
	if o.visuals == nil || o.visualStyle == VisualUnset {
		return
	}
	seq := o.turnSeq
	o.visualSeq = seq
	o.isImageLoading = true

	style := o.visualStyle
	description := o.description
	topic := o.topic
	previous := o.sceneConfig.Clone()

	o.visualWG.Add(1)
	go func() {
		defer o.visualWG.Done()
		if style == VisualSchematic {
			cfg, err := o.visuals.GenerateSceneConfig(context.Background(), topic, description, previous)
			if err != nil {
				// GenerateSceneConfig recovers internally; an error here
				// means the generator itself is miswired.
				log.Printf("sim: run %s: scene generation error: %v", o.runID, err)
			}
			o.applyScene(seq, cfg, err)
			return
		}
		img, err := o.visuals.GenerateImage(context.Background(), description, style)
		o.applyImage(seq, img, err)
	}()
}

// applyScene commits a finished scene job unless a newer turn superseded it.
func (o *Orchestrator) applyScene(seq uint64, cfg SceneConfig, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if seq != o.visualSeq {
		log.Printf("sim: run %s: dropping stale scene result for turn %d", o.runID, seq)
		return
	}
	o.isImageLoading = false
	if err == nil {
		o.sceneConfig = cfg.Clone()
	}
	o.broadcastLocked()
}

// applyImage persists finished image bytes and commits the resulting
// reference unless a newer turn superseded the job. On failure the previous
// image stays in place. Without a media store the bytes are committed
// inline as a data URL.
func (o *Orchestrator) applyImage(seq uint64, img []byte, err error) {
	if err == nil && len(img) > 0 && o.media == nil {
		url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)
		o.commitImage(seq, url)
		return
	}
	if err == nil && len(img) > 0 && o.media != nil && o.currentVisual(seq) {
		name := fmt.Sprintf("turn-%d.png", seq)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if putErr := o.media.Put(ctx, o.runID, name, img); putErr != nil {
			log.Printf("sim: run %s: media store write failed: %v", o.runID, putErr)
			err = putErr
		} else if url, urlErr := o.media.URL(ctx, o.runID, name); urlErr != nil {
			err = urlErr
		} else {
			if url == "" {
				// Backend has no URL scheme; the gateway serves the bytes.
				url = "/api/media/" + o.runID + "/" + name
			}
			o.commitImage(seq, url)
			return
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if seq != o.visualSeq {
		log.Printf("sim: run %s: dropping stale image result for turn %d", o.runID, seq)
		return
	}
	o.isImageLoading = false
	if err != nil {
		log.Printf("sim: run %s: image generation failed: %v", o.runID, err)
	}
	o.broadcastLocked()
}

func (o *Orchestrator) commitImage(seq uint64, url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if seq != o.visualSeq {
		log.Printf("sim: run %s: dropping stale image result for turn %d", o.runID, seq)
		return
	}
	o.isImageLoading = false
	o.imageURL = url
	o.broadcastLocked()
}

func (o *Orchestrator) currentVisual(seq uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return seq == o.visualSeq
}

// persistReportLocked archives the completed run at most once. The guard is
// set before the store call, so a failing write is logged and never retried
// rather than risking a double record.
func (o *Orchestrator) persistReportLocked() {
	if !o.isEnded || o.report == nil || o.reportPersisted {
		return
	}
	o.reportPersisted = true
	if o.archive == nil {
		return
	}
	ts := o.now()
	rec := SavedRecord{
		ID:           newRecordID(ts),
		Timestamp:    ts,
		ScenarioKind: o.kind,
		Topic:        topicOrFirstBeat(o.topic, o.history),
		Report:       *o.report,
		Transcript:   append([]Message(nil), o.history...),
	}
	o.saveWG.Add(1)
	go func() {
		defer o.saveWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.archive.Save(ctx, rec); err != nil {
			log.Printf("sim: run %s: archive save failed: %v", o.runID, err)
		}
	}()
}

// Snapshot returns an immutable copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		RunID:                  o.runID,
		ScenarioKind:           o.kind,
		Topic:                  o.topic,
		Description:            o.description,
		History:                append([]Message(nil), o.history...),
		Options:                append([]string(nil), o.options...),
		IsLoading:              o.isLoading,
		IsImageLoading:         o.isImageLoading,
		WaitingForVisualChoice: o.waitingForVisualChoice,
		VisualStyle:            o.visualStyle,
		IsEnded:                o.isEnded,
		ImageURL:               o.imageURL,
		Scene:                  o.sceneConfig.Clone(),
		Notice:                 o.notice,
	}
	if o.report != nil {
		report := *o.report
		snap.Report = &report
	}
	snap.ReportReady = o.isEnded && o.report != nil && !o.isImageLoading
	snap.Busy = o.isLoading || o.waitingForVisualChoice || (o.isEnded && o.isImageLoading)
	return snap
}

// Subscribe registers a snapshot stream. The channel immediately carries the
// current state and then every subsequent change; slow consumers see
// coalesced updates, never a blocked orchestrator.
func (o *Orchestrator) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, 1)
	o.mu.Lock()
	o.subs[ch] = struct{}{}
	ch <- o.snapshotLocked()
	o.mu.Unlock()
	return ch
}

func (o *Orchestrator) Unsubscribe(ch chan Snapshot) {
	o.mu.Lock()
	delete(o.subs, ch)
	o.mu.Unlock()
}

func (o *Orchestrator) broadcast() {
	o.mu.Lock()
	o.broadcastLocked()
	o.mu.Unlock()
}

func (o *Orchestrator) broadcastLocked() {
	snap := o.snapshotLocked()
	for ch := range o.subs {
		select {
		case ch <- snap:
		default:
			// Replace the stale pending snapshot with the fresh one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Wait blocks until in-flight visual jobs and archive writes have settled.
// Used by tests and graceful shutdown.
func (o *Orchestrator) Wait() {
	o.visualWG.Wait()
	o.saveWG.Wait()
}
