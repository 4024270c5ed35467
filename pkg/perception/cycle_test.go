package perception

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/teslashibe/go-shopassist/pkg/cart"
	"github.com/teslashibe/go-shopassist/pkg/catalog"
	"github.com/teslashibe/go-shopassist/pkg/command"
	"github.com/teslashibe/go-shopassist/pkg/inference"
	"github.com/teslashibe/go-shopassist/pkg/intent"
	"github.com/teslashibe/go-shopassist/pkg/scene"
	"github.com/teslashibe/go-shopassist/pkg/voice"
)

type fakeFrame struct {
	closed *int
}

func (f fakeFrame) Bounds() image.Rectangle { return image.Rect(0, 0, 640, 480) }

func (f fakeFrame) Close() error {
	*f.closed++
	return nil
}

// scriptedCapture returns the scripted keys in order, then NoKey forever.
// A scripted error replaces the frame but keeps the key.
type scriptedCapture struct {
	keys   []int
	errs   []error
	calls  int
	closed int
}

func (c *scriptedCapture) Next(ctx context.Context) (fakeFrame, int, error) {
	i := c.calls
	c.calls++
	key := command.NoKey
	if i < len(c.keys) {
		key = c.keys[i]
	}
	if i < len(c.errs) && c.errs[i] != nil {
		return fakeFrame{}, key, c.errs[i]
	}
	return fakeFrame{closed: &c.closed}, key, nil
}

type fixedDetector struct {
	faces    []scene.Face
	barcodes []scene.Barcode
	err      error
}

func (d fixedDetector) Detect(ctx context.Context, f fakeFrame) ([]scene.Face, []scene.Barcode, error) {
	return d.faces, d.barcodes, d.err
}

type recordingRenderer struct {
	views []scene.View
}

func (r *recordingRenderer) Render(f fakeFrame, v scene.View) error {
	r.views = append(r.views, v)
	return nil
}

type recordingSpeaker struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSpeaker) Speak(text string) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
}

func (s *recordingSpeaker) Listen() {}

func (s *recordingSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// intentsByKeyword answers with the command whose keyword appears in the
// transcript embedded in the prompt.
func intentsByKeyword(table map[string]string) *inference.Mock {
	return &inference.Mock{CompleteFunc: func(ctx context.Context, req *inference.CompletionRequest) (*inference.CompletionResponse, error) {
		tail := req.Prompt[strings.LastIndex(req.Prompt, "\nInput: "):]
		for kw, cmd := range table {
			if strings.Contains(tail, kw) {
				return &inference.CompletionResponse{Text: cmd}, nil
			}
		}
		return &inference.CompletionResponse{Text: "NO_MATCH"}, nil
	}}
}

type harness struct {
	cycle    *Cycle[fakeFrame]
	capture  *scriptedCapture
	renderer *recordingRenderer
	speaker  *recordingSpeaker
	inbox    *voice.Inbox
	cart     *cart.Cart
	store    *scene.Store
	panels   *scene.Panels
	llm      *inference.Mock
	dispatch *command.Dispatcher
	executed []command.Command
}

func milkCatalog() *catalog.Catalog {
	snap := catalog.NewSnapshot(
		[]catalog.Product{{ID: 1, Name: "Milk", Price: decimal.RequireFromString("4.50")}},
		map[string]int64{"5900000000001": 1},
	)
	return catalog.New(nil, catalog.WithSnapshot(snap))
}

func newHarness(t *testing.T, det fixedDetector, capture *scriptedCapture, llm *inference.Mock) *harness {
	t.Helper()
	h := &harness{
		capture:  capture,
		renderer: &recordingRenderer{},
		speaker:  &recordingSpeaker{},
		inbox:    voice.NewInbox(),
		cart:     cart.New(cart.NoopFinalizer),
		store:    &scene.Store{},
		panels:   &scene.Panels{},
		llm:      llm,
	}

	env := &command.Env{Voice: h.speaker, Cart: h.cart, Display: h.panels, Scene: h.store}
	d := command.NewDispatcher(env, command.DefaultKeyBinding())
	h.dispatch = d
	record := func(cmd command.Command, fn func(env *command.Env)) {
		d.Register(cmd, func(ctx context.Context, env *command.Env) error {
			h.executed = append(h.executed, cmd)
			if fn != nil {
				fn(env)
			}
			return nil
		})
	}
	record(command.Quit, nil)
	record(command.AddProduct, func(env *command.Env) { env.Cart.Add(env.Scene.Latest().Matches()) })
	record(command.ClearCart, func(env *command.Env) { env.Cart.Clear() })
	record(command.ToggleShoppingList, func(env *command.Env) { env.Display.ToggleShoppingList() })

	cycle, err := New(Config[fakeFrame]{
		Capture:    capture,
		Detector:   det,
		Renderer:   h.renderer,
		Catalog:    milkCatalog(),
		Scene:      h.store,
		Dispatcher: d,
		Intents:    intent.NewResolver(llm),
		Inbox:      h.inbox,
		Voice:      h.speaker,
		Cart:       h.cart,
		Panels:     h.panels,
		SkipDelay:  time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.cycle = cycle
	return h
}

func TestQuitTranscriptTerminates(t *testing.T) {
	llm := intentsByKeyword(map[string]string{"quit": "quit_application"})
	h := newHarness(t, fixedDetector{}, &scriptedCapture{}, llm)

	h.inbox.Push(voice.NewTranscript("please quit now", voice.SourceVoice))
	if !h.cycle.Step(context.Background()) {
		t.Fatal("quit transcript should terminate the loop")
	}
	if h.cart.Len() != 0 || len(h.executed) != 0 {
		t.Errorf("quit must not run actions: executed=%v cart=%d", h.executed, h.cart.Len())
	}
	if got := h.speaker.said(); len(got) != 1 || got[0] != ShutdownUtterance {
		t.Errorf("said %v, want shutdown utterance", got)
	}
}

func TestNoMatchTranscriptContinues(t *testing.T) {
	h := newHarness(t, fixedDetector{}, &scriptedCapture{}, intentsByKeyword(nil))

	h.inbox.Push(voice.NewTranscript("what's the weather", voice.SourceVoice))
	if h.cycle.Step(context.Background()) {
		t.Fatal("no-match must not terminate")
	}
	if len(h.executed) != 0 || h.inbox.Len() != 0 {
		t.Errorf("executed=%v inbox=%d", h.executed, h.inbox.Len())
	}
}

func TestInboxDrainsOnePerIteration(t *testing.T) {
	llm := intentsByKeyword(map[string]string{"add": "add_product", "clear": "clear_cart", "list": "toggle_shopping_list"})
	h := newHarness(t, fixedDetector{}, &scriptedCapture{}, llm)

	for _, text := range []string{"add this", "clear it", "show the list"} {
		h.inbox.Push(voice.NewTranscript(text, voice.SourceVoice))
	}

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		h.cycle.Step(ctx)
		if len(h.executed) != i {
			t.Fatalf("after %d iterations executed %v", i, h.executed)
		}
	}
	want := []command.Command{command.AddProduct, command.ClearCart, command.ToggleShoppingList}
	for i := range want {
		if h.executed[i] != want[i] {
			t.Errorf("executed[%d] = %s, want %s", i, h.executed[i], want[i])
		}
	}
	if h.inbox.Len() != 0 {
		t.Errorf("inbox = %d", h.inbox.Len())
	}
}

func TestKeyboardQuitTakesPrecedence(t *testing.T) {
	llm := intentsByKeyword(map[string]string{"clear": "clear_cart"})
	h := newHarness(t, fixedDetector{}, &scriptedCapture{keys: []int{'q'}}, llm)

	h.inbox.Push(voice.NewTranscript("clear the cart", voice.SourceVoice))
	if !h.cycle.Step(context.Background()) {
		t.Fatal("q should terminate")
	}
	if h.inbox.Len() != 1 {
		t.Error("transcript must stay queued when the keyboard quits first")
	}
	if len(h.llm.Requests()) != 0 {
		t.Error("intent resolution must not run after keyboard quit")
	}
}

func TestKeyAndTranscriptSameIteration(t *testing.T) {
	llm := intentsByKeyword(map[string]string{"clear": "clear_cart"})
	h := newHarness(t, fixedDetector{}, &scriptedCapture{keys: []int{'s'}}, llm)

	h.inbox.Push(voice.NewTranscript("clear the cart", voice.SourceVoice))
	if h.cycle.Step(context.Background()) {
		t.Fatal("unexpected termination")
	}
	want := []command.Command{command.ToggleShoppingList, command.ClearCart}
	if len(h.executed) != 2 || h.executed[0] != want[0] || h.executed[1] != want[1] {
		t.Errorf("executed = %v, want %v (keyboard first)", h.executed, want)
	}
}

func TestAddProductUsesCurrentFrame(t *testing.T) {
	det := fixedDetector{
		faces: []scene.Face{{Label: scene.UnknownFaceLabel}},
		barcodes: []scene.Barcode{
			{Payload: "5900000000001", Format: "EAN_13"},
			{Payload: "0000", Format: "CODE_128"},
		},
	}
	h := newHarness(t, det, &scriptedCapture{keys: []int{'a'}}, intentsByKeyword(nil))

	h.cycle.Step(context.Background())

	if h.cart.Len() != 1 {
		t.Fatalf("cart has %d items, want 1", h.cart.Len())
	}
	if !h.cart.Total().Equal(decimal.RequireFromString("4.50")) {
		t.Errorf("total = %s, want 4.50", h.cart.Total())
	}

	latest := h.store.Latest()
	if len(latest.Products) != 2 || !latest.Products[0].Recognized() || latest.Products[1].Recognized() {
		t.Errorf("published products = %+v", latest.Products)
	}
	if latest.Products[0].Label() != "Milk, 4.50" || latest.Products[1].Label() != "0000" {
		t.Errorf("labels = %q, %q", latest.Products[0].Label(), latest.Products[1].Label())
	}
}

func TestRenderViewFollowsPanels(t *testing.T) {
	det := fixedDetector{barcodes: []scene.Barcode{{Payload: "5900000000001"}}}
	h := newHarness(t, det, &scriptedCapture{keys: []int{'a', 's'}}, intentsByKeyword(nil))
	ctx := context.Background()

	h.cycle.Step(ctx) // render, then add Milk
	h.cycle.Step(ctx) // render, then show the list
	h.cycle.Step(ctx) // render with the list

	if len(h.renderer.views) != 3 {
		t.Fatalf("rendered %d views", len(h.renderer.views))
	}
	first, last := h.renderer.views[0], h.renderer.views[2]
	if first.ShowShoppingList || first.Total != "0.00 [PLN]" {
		t.Errorf("first view = %+v", first)
	}
	if !last.ShowShoppingList || len(last.ShoppingList) != 1 || last.ShoppingList[0] != "Milk" {
		t.Errorf("last view list = %v (visible %v)", last.ShoppingList, last.ShowShoppingList)
	}
	if last.Total != "4.50 [PLN]" {
		t.Errorf("last view total = %q", last.Total)
	}
	if h.capture.closed != 3 {
		t.Errorf("closed %d frames, want 3", h.capture.closed)
	}
}

func TestCaptureFailureSkipsFrameButDrainsInbox(t *testing.T) {
	llm := intentsByKeyword(map[string]string{"clear": "clear_cart"})
	capture := &scriptedCapture{errs: []error{errors.New("camera unplugged")}}
	h := newHarness(t, fixedDetector{}, capture, llm)

	h.inbox.Push(voice.NewTranscript("clear", voice.SourceVoice))
	if h.cycle.Step(context.Background()) {
		t.Fatal("unexpected termination")
	}
	if len(h.renderer.views) != 0 {
		t.Error("nothing should be rendered without a frame")
	}
	if len(h.executed) != 1 || h.executed[0] != command.ClearCart {
		t.Errorf("executed = %v", h.executed)
	}
	if h.cycle.Frames() != 0 {
		t.Errorf("Frames = %d", h.cycle.Frames())
	}
}

func TestKeysWorkWhileCameraIsDown(t *testing.T) {
	down := errors.New("camera: no frame")
	capture := &scriptedCapture{
		keys: []int{'c', 'q'},
		errs: []error{down, down},
	}
	h := newHarness(t, fixedDetector{}, capture, intentsByKeyword(nil))
	obs := &countingObserver{}
	h.cycle.cfg.Observer = obs
	h.dispatch.SetObserver(obs)

	if h.cycle.Step(context.Background()) {
		t.Fatal("clear key terminated the loop")
	}
	if len(h.executed) != 1 || h.executed[0] != command.ClearCart {
		t.Errorf("executed = %v, want [clear_cart]", h.executed)
	}
	if !h.cycle.Step(context.Background()) {
		t.Fatal("'q' with the camera down did not terminate")
	}
	if got := h.speaker.said(); len(got) == 0 || got[len(got)-1] != ShutdownUtterance {
		t.Errorf("spoken = %q, want shutdown utterance last", got)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.skipped != 2 {
		t.Errorf("FrameSkipped = %d, want 2", obs.skipped)
	}
	if obs.processed != 0 {
		t.Errorf("FrameProcessed = %d, want 0", obs.processed)
	}
	if obs.depths != 1 {
		t.Errorf("InboxDepth calls = %d, want 1", obs.depths)
	}
	want := []string{"clear_cart/key/executed", "quit_application/key/terminate"}
	if strings.Join(obs.commands, " ") != strings.Join(want, " ") {
		t.Errorf("dispatches = %v, want %v", obs.commands, want)
	}
}

type countingObserver struct {
	mu        sync.Mutex
	processed int
	skipped   int
	depths    int
	commands  []string
}

func (o *countingObserver) FrameProcessed(int, int, time.Duration) {
	o.mu.Lock()
	o.processed++
	o.mu.Unlock()
}

func (o *countingObserver) FrameSkipped() {
	o.mu.Lock()
	o.skipped++
	o.mu.Unlock()
}

func (o *countingObserver) InboxDepth(int) {
	o.mu.Lock()
	o.depths++
	o.mu.Unlock()
}

func (o *countingObserver) CommandDispatched(cmd command.Command, source string, outcome command.Outcome, _ time.Duration) {
	o.mu.Lock()
	o.commands = append(o.commands, string(cmd)+"/"+source+"/"+string(outcome))
	o.mu.Unlock()
}

func TestDetectionFailureContinues(t *testing.T) {
	h := newHarness(t, fixedDetector{err: errors.New("model missing")}, &scriptedCapture{}, intentsByKeyword(nil))

	if h.cycle.Step(context.Background()) {
		t.Fatal("unexpected termination")
	}
	if len(h.renderer.views) != 1 || len(h.renderer.views[0].Detections.Products) != 0 {
		t.Errorf("views = %+v", h.renderer.views)
	}
}

func TestRunAnnouncesAndStops(t *testing.T) {
	h := newHarness(t, fixedDetector{}, &scriptedCapture{keys: []int{command.NoKey, command.NoKey, 'q'}}, intentsByKeyword(nil))

	if err := h.cycle.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := h.speaker.said()
	if len(got) != 2 || got[0] != StartupUtterance || got[1] != ShutdownUtterance {
		t.Errorf("said %v", got)
	}
	if h.cycle.Frames() != 3 {
		t.Errorf("Frames = %d, want 3", h.cycle.Frames())
	}
}

func TestRunCancelled(t *testing.T) {
	capture := &scriptedCapture{}
	h := newHarness(t, fixedDetector{}, capture, intentsByKeyword(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.cycle.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	if capture.calls != 0 {
		t.Errorf("captured %d frames after cancel", capture.calls)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config[fakeFrame]{}); !errors.Is(err, ErrIncomplete) {
		t.Errorf("err = %v, want ErrIncomplete", err)
	}
}
