package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/messmate/pgmess-backend/internal/clients/llm"
	"github.com/messmate/pgmess-backend/internal/logger"
	"github.com/messmate/pgmess-backend/internal/repos"
	"github.com/messmate/pgmess-backend/internal/types"
)

// ErrExtractionUnavailable means the reasoning service could not be
// reached (or timed out) and no intent could be produced. Callers must
// not mutate order state on this error.
var ErrExtractionUnavailable = errors.New("intent extraction unavailable")

type ExtractRequest struct {
	Message  string
	UserID   *uuid.UUID
	UserName string
	// WhatsAppID keys the conversation history and the call log.
	WhatsAppID string
	// ReferenceDate is the date an empty or missing date expression
	// resolves to (the facility defaults this to tomorrow).
	ReferenceDate time.Time
	Now           time.Time
	History       []string
}

type IntentExtractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*types.Intent, error)
}

type intentExtractor struct {
	log     *logger.Logger
	client  llm.Client
	callLog repos.AICallLogRepo
	timeout time.Duration
}

func NewIntentExtractor(baseLog *logger.Logger, client llm.Client, callLog repos.AICallLogRepo, timeout time.Duration) IntentExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &intentExtractor{
		log:     baseLog.With("service", "IntentExtractor"),
		client:  client,
		callLog: callLog,
		timeout: timeout,
	}
}

// intentWire is the JSON shape the model is instructed to produce.
// Dates come back as expressions, not calendar dates: the model names
// what the resident said ("tomorrow", "friday", "2026-03-14") and the
// extractor resolves it deterministically against the request clock.
type intentWire struct {
	Operation      string `json:"operation"`
	DateExpression string `json:"date_expression"`
	Meals          struct {
		Breakfast *bool `json:"breakfast"`
		Lunch     *bool `json:"lunch"`
		Dinner    *bool `json:"dinner"`
	} `json:"meals"`
	Clarification string `json:"clarification"`
}

const systemPrompt = `You read one WhatsApp message from a resident of a shared-housing mess and extract their meal-order intent. Residents write in English, Malayalam, or a mix (Manglish).

Reply with ONLY a JSON object, no prose:
{
  "operation": "create" | "update" | "cancel" | "replace" | "unknown",
  "date_expression": "" | "today" | "tomorrow" | "day_after_tomorrow" | "<weekday name>" | "<YYYY-MM-DD>",
  "meals": {"breakfast": true|false|null, "lunch": true|false|null, "dinner": true|false|null},
  "clarification": ""
}

Rules:
- "create": the resident is placing an order and none of the wording implies changing an existing one.
- "update": the resident adjusts some meals ("add dinner", "no lunch") and the untouched meals should stay as they are.
- "replace": the resident restates the whole order ("make it only lunch", "just dinner instead"); meals they do not mention are dropped.
- "cancel": the resident wants no meals at all for the date ("cancel my order", "skip tomorrow", "venda").
- "unknown": the message is not about meal orders, or you cannot tell what they want. Set clarification to one short question in the resident's language.
- A meal is true if wanted, false if explicitly not wanted, null if not mentioned.
- date_expression is the date words the resident used, untranslated in meaning: "innu" means today, "nale" means tomorrow, "mattannale" means day_after_tomorrow. Weekdays ("friday", "velli") become the weekday name in English. An explicit date becomes YYYY-MM-DD. If no date is mentioned, use "".
- Never invent meals or dates the resident did not state or clearly imply.

Examples:
"breakfast and lunch for tomorrow" -> {"operation":"create","date_expression":"tomorrow","meals":{"breakfast":true,"lunch":true,"dinner":null},"clarification":""}
"nale dinner venam" -> {"operation":"create","date_expression":"tomorrow","meals":{"breakfast":null,"lunch":null,"dinner":true},"clarification":""}
"add dinner to my order" -> {"operation":"update","date_expression":"","meals":{"breakfast":null,"lunch":null,"dinner":true},"clarification":""}
"innu lunch venda" -> {"operation":"update","date_expression":"today","meals":{"breakfast":null,"lunch":false,"dinner":null},"clarification":""}
"make it just lunch for friday" -> {"operation":"replace","date_expression":"friday","meals":{"breakfast":null,"lunch":true,"dinner":null},"clarification":""}
"cancel tomorrow" -> {"operation":"cancel","date_expression":"tomorrow","meals":{"breakfast":null,"lunch":null,"dinner":null},"clarification":""}
"hi how are you" -> {"operation":"unknown","date_expression":"","meals":{"breakfast":null,"lunch":null,"dinner":null},"clarification":"Hi! Would you like to order or change any meals?"}`

const repairPrompt = `Your previous reply was not valid. Reply again with ONLY the JSON object described in the instructions. No markdown fences, no thinking, no explanation. Fix this problem: %s

Original message to extract from:
%s`

func (e *intentExtractor) Extract(ctx context.Context, req ExtractRequest) (*types.Intent, error) {
	userPrompt := e.buildUserPrompt(req)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	completion, err := e.client.CompleteJSON(callCtx, systemPrompt, userPrompt)
	if err != nil {
		e.recordCall(ctx, req, userPrompt, "", nil, err)
		e.log.Error("Intent extraction call failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrExtractionUnavailable, err)
	}

	intent, parseErr := e.parseAndResolve(completion.Content, req)
	if parseErr == nil {
		e.recordCall(ctx, req, userPrompt, completion.Content, completion.Usage, nil)
		return intent, nil
	}

	// One repair attempt with the failure spelled out.
	e.log.Warn("Intent payload invalid, retrying once", "error", parseErr)
	repairUser := fmt.Sprintf(repairPrompt, parseErr.Error(), req.Message)

	repairCtx, cancelRepair := context.WithTimeout(ctx, e.timeout)
	defer cancelRepair()

	completion, err = e.client.CompleteJSON(repairCtx, systemPrompt, repairUser)
	if err != nil {
		e.recordCall(ctx, req, repairUser, "", nil, err)
		return nil, fmt.Errorf("%w: %v", ErrExtractionUnavailable, err)
	}

	intent, parseErr = e.parseAndResolve(completion.Content, req)
	e.recordCall(ctx, req, repairUser, completion.Content, completion.Usage, parseErr)
	if parseErr != nil {
		// The model is reachable but cannot produce a usable intent.
		// Degrade to a clarification rather than failing the request.
		e.log.Warn("Intent payload invalid after repair", "error", parseErr)
		return &types.Intent{
			Operation:          types.IntentUnknown,
			NeedsClarification: true,
			Clarification:      "Sorry, I couldn't follow that. Could you tell me which meals and which date?",
		}, nil
	}
	return intent, nil
}

func (e *intentExtractor) buildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s (%s).\n", req.Now.Format("2006-01-02"), req.Now.Weekday())
	fmt.Fprintf(&b, "Resident: %s\n", req.UserName)
	if len(req.History) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, line := range req.History {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "Message: %s", req.Message)
	return b.String()
}

var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fenceRe      = regexp.MustCompile("(?s)```(?:json)?(.*?)```")
)

// sanitizeModelJSON strips reasoning tags and markdown fences some
// models wrap around their output, then trims to the outermost object.
func sanitizeModelJSON(raw string) string {
	s := thinkBlockRe.ReplaceAllString(raw, "")
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

func (e *intentExtractor) parseAndResolve(content string, req ExtractRequest) (*types.Intent, error) {
	cleaned := sanitizeModelJSON(content)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	var wire intentWire
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %v", err)
	}

	op := types.IntentOperation(strings.ToLower(strings.TrimSpace(wire.Operation)))
	if !op.Valid() {
		return nil, fmt.Errorf("operation %q is not one of create/update/cancel/replace/unknown", wire.Operation)
	}

	intent := &types.Intent{Operation: op}
	intent.Meals.Breakfast = wire.Meals.Breakfast
	intent.Meals.Lunch = wire.Meals.Lunch
	intent.Meals.Dinner = wire.Meals.Dinner

	if op == types.IntentUnknown {
		intent.NeedsClarification = true
		intent.Clarification = strings.TrimSpace(wire.Clarification)
		if intent.Clarification == "" {
			intent.Clarification = "Could you tell me which meals you want and for which date?"
		}
		return intent, nil
	}

	if op != types.IntentCancel && intent.Meals.Empty() {
		return nil, fmt.Errorf("operation %s names no meals", op)
	}

	date, err := resolveDateExpression(wire.DateExpression, req.ReferenceDate, req.Now)
	if err != nil {
		return nil, err
	}
	intent.Date = date
	return intent, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// resolveDateExpression maps a date expression to a calendar date
// anchored at now. Weekday names resolve to the next occurrence, with
// today counting as a match.
func resolveDateExpression(expr string, referenceDate, now time.Time) (time.Time, error) {
	expr = strings.ToLower(strings.TrimSpace(expr))
	today := types.DateOnly(now)

	switch expr {
	case "":
		return types.DateOnly(referenceDate), nil
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "day_after_tomorrow", "day after tomorrow":
		return today.AddDate(0, 0, 2), nil
	}

	if wd, ok := weekdays[expr]; ok {
		delta := (int(wd) - int(today.Weekday()) + 7) % 7
		return today.AddDate(0, 0, delta), nil
	}

	if parsed, err := time.Parse("2006-01-02", expr); err == nil {
		return types.DateOnly(parsed), nil
	}

	return time.Time{}, fmt.Errorf("date expression %q is not resolvable", expr)
}

// recordCall writes the call-log row. Failures are logged and dropped;
// the log never blocks an order.
func (e *intentExtractor) recordCall(ctx context.Context, req ExtractRequest, prompt, response string, usage json.RawMessage, callErr error) {
	if e.callLog == nil {
		return
	}
	entry := &types.AICallLog{
		UserID:     req.UserID,
		WhatsAppID: req.WhatsAppID,
		CallType:   "intent_extraction",
		Model:      e.client.Model(),
		Prompt:     prompt,
		Response:   response,
		Success:    callErr == nil,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	if len(usage) > 0 {
		entry.Usage = datatypes.JSON(usage)
	}
	if _, err := e.callLog.Create(ctx, nil, entry); err != nil {
		e.log.Warn("Failed to record AI call", "error", err)
	}
}
