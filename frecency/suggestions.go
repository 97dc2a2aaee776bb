// Package frecency scores candidate items for smart suggestions (component
// H's suggestion half) using Wilson-score-bounded usage signals, staleness
// decay, and a frecency-influence multiplier, ported from the original
// suggestion engine's statistical model.
package frecency

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/hamr-launcher/hamrd/index"
)

const (
	minEventsForPattern  = 3
	minConfidenceToShow  = 0.25
	minSequenceConfidence = 0.1
	minRunningAppsScore   = 0.1
)

// SignalWeights are the fixed per-signal weights composed into a candidate's
// confidence score.
var SignalWeights = struct {
	Sequence, Session, ResumeFromIdle, Time, Workspace, RunningApps,
	LaunchFromEmpty, DisplayCount, SessionDuration, Day, Monitor, Streak,
	FrecencyInfluence float64
}{
	Sequence:          0.35,
	Session:           0.35,
	ResumeFromIdle:    0.30,
	Time:              0.20,
	Workspace:         0.20,
	RunningApps:       0.20,
	LaunchFromEmpty:   0.15,
	DisplayCount:      0.15,
	SessionDuration:   0.12,
	Day:               0.10,
	Monitor:           0.08,
	Streak:            0.08,
	FrecencyInfluence: 0.4,
}

// WilsonScore computes the lower bound of the Wilson score interval for
// successes out of total, at confidence z (1.65 ~ 90%).
func WilsonScore(successes, total uint64, z float64) float64 {
	if total == 0 {
		return 0
	}
	p := float64(successes) / float64(total)
	zSq := z * z
	n := float64(total)

	denominator := 1.0 + zSq/n
	center := p + zSq/(2.0*n)
	spread := z * math.Sqrt((p*(1.0-p)+zSq/(4.0*n))/n)

	v := (center - spread) / denominator
	if v < 0 {
		return 0
	}
	return v
}

// WilsonScoreDefault uses z=1.65.
func WilsonScoreDefault(successes, total uint64) float64 {
	return WilsonScore(successes, total, 1.65)
}

// SequenceConfidence scores an A-then-B launch pattern via lift and
// confidence, rejecting weak or sparse associations.
func SequenceConfidence(countAB, countA, countOnlyB, totalLaunches, minCount uint64) float64 {
	if countAB < minCount || countA == 0 || totalLaunches == 0 {
		return 0
	}
	confidence := float64(countAB) / float64(countA)
	probB := float64(countOnlyB) / float64(totalLaunches)
	var lift float64
	if probB > 0 {
		lift = confidence / probB
	}
	if lift < 1.2 || confidence < 0.2 {
		return 0
	}
	return math.Min(confidence*math.Min(lift/2.0, 1.0), 1.0)
}

// DecayFactor returns the exponential staleness multiplier 0.5^(age/halfLife).
// halfLifeDays <= 0 or ageDays <= 0 disables decay (returns 1.0).
func DecayFactor(ageDays, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 || ageDays <= 0 {
		return 1.0
	}
	return math.Pow(0.5, ageDays/halfLifeDays)
}

// IsTooOld reports whether ageDays exceeds maxAgeDays. maxAgeDays == 0
// disables the check.
func IsTooOld(ageDays float64, maxAgeDays uint32) bool {
	if maxAgeDays == 0 {
		return false
	}
	return ageDays > float64(maxAgeDays)
}

// AgeInDays converts a ms-epoch timestamp into an age relative to now.
func AgeInDays(timestampMS, nowMS int64) float64 {
	if timestampMS >= nowMS {
		return 0
	}
	return float64(nowMS-timestampMS) / (1000.0 * 60.0 * 60.0 * 24.0)
}

// Reason tags why a candidate was suggested, for UI display.
type Reason struct {
	Kind  string // "time_of_day", "day_of_week", "streak", "session_start", ...
	Value string // app name, workspace id, ... empty if not applicable
	Count int    // streak days / display count, where relevant
}

// Suggestion is one ranked smart-suggestion candidate.
type Suggestion struct {
	PluginID string
	ItemID   string
	Score    float64
	Reasons  []Reason
}

// Context carries the situational signals used to score candidates,
// mirroring index.ExecutionContext's fields relevant to suggestion time.
type Context struct {
	Hour               int
	Weekday            int // time.Sunday == 0 .. time.Saturday == 6
	Workspace          string
	Monitor            string
	DisplayCount       int
	LastApp            string
	SessionDurationIdx int // -1 if absent
	IsSessionStart     bool
	IsResumeFromIdle   bool
	RunningApps        []string
	NowMS              int64
}

// ContextFromExecution derives a suggestion Context from a live moment.
func ContextFromExecution(now time.Time, ec index.ExecutionContext) Context {
	return Context{
		Hour:               now.Hour(),
		Weekday:            int(now.Weekday()),
		Workspace:          ec.Workspace,
		Monitor:            ec.Monitor,
		DisplayCount:       ec.DisplayCount,
		LastApp:            ec.LastApp,
		SessionDurationIdx: ec.SessionDurationIdx,
		IsSessionStart:     ec.SessionStart,
		IsResumeFromIdle:   ec.ResumeFromIdle,
		RunningApps:        ec.RunningApps,
		NowMS:              now.UnixMilli(),
	}
}

type weightedScore struct {
	score, weight float64
}

type accumulator struct {
	scores     []weightedScore
	reasons    []Reason
	totalCount uint64
	minEvents  uint64
}

func newAccumulator(totalCount uint64) *accumulator {
	return &accumulator{totalCount: totalCount, minEvents: minEventsForPattern}
}

func (a *accumulator) addIfSignificant(signalCount uint64, threshold, weight float64, reason Reason) {
	if signalCount < a.minEvents {
		return
	}
	score := WilsonScoreDefault(signalCount, a.totalCount)
	if score > threshold {
		a.scores = append(a.scores, weightedScore{score, weight})
		a.reasons = append(a.reasons, reason)
	}
}

func (a *accumulator) addArraySignal(arr []uint64, index int, minUnique int, threshold, weight float64, reason Reason) {
	unique := 0
	for _, c := range arr {
		if c > 0 {
			unique++
		}
	}
	if unique < minUnique {
		return
	}
	var signalCount uint64
	if index >= 0 && index < len(arr) {
		signalCount = arr[index]
	}
	a.addIfSignificant(signalCount, threshold, weight, reason)
}

func (a *accumulator) addMapSignal(m map[string]uint64, key string, minUnique int, threshold, weight float64, reason Reason) {
	if len(m) < minUnique {
		return
	}
	a.addIfSignificant(m[key], threshold, weight, reason)
}

func (a *accumulator) addFlagSignal(flag bool, signalCount uint64, threshold, weight float64, reason Reason) {
	if flag {
		a.addIfSignificant(signalCount, threshold, weight, reason)
	}
}

func (a *accumulator) addScore(score, weight float64, reason Reason) {
	a.scores = append(a.scores, weightedScore{score, weight})
	a.reasons = append(a.reasons, reason)
}

func (a *accumulator) finish() (confidence float64, reasons []Reason) {
	confidence = compositeConfidence(a.scores)
	return confidence, a.reasons
}

func compositeConfidence(scores []weightedScore) float64 {
	var totalWeight, weightedSum float64
	for _, ws := range scores {
		if ws.score > 0 {
			totalWeight += ws.weight
			weightedSum += ws.score * ws.weight
		}
	}
	if totalWeight > 0 {
		return weightedSum / totalWeight
	}
	return 0
}

// Suggest returns up to limit ranked suggestions drawn from the store's
// items, applying staleness decay (half-life in days, 0 disables) and a max
// age cutoff (days, 0 disables).
func Suggest(store *index.Store, ctx Context, limit int, stalenessHalfLifeDays float64, maxAgeDays uint32) []Suggestion {
	items := store.ItemsWithFrecency(ctx.NowMS)
	if len(items) == 0 {
		return nil
	}

	maxFrecency := 1.0
	for _, it := range items {
		if it.Score > maxFrecency {
			maxFrecency = it.Score
		}
	}

	var totalLaunches uint64
	for _, it := range items {
		totalLaunches += it.Item.Frecency.Count
	}

	candidates := make([]Suggestion, 0, len(items))
	for _, it := range items {
		ageDays := AgeInDays(it.Item.Frecency.LastUsed, ctx.NowMS)
		if IsTooOld(ageDays, maxAgeDays) {
			continue
		}

		confidence, reasons := itemConfidence(it.Item, ctx, items, totalLaunches)
		if confidence < minConfidenceToShow && len(reasons) == 0 {
			continue
		}

		normalizedFrecency := it.Score / maxFrecency
		frecencyBoost := 1.0 + normalizedFrecency*SignalWeights.FrecencyInfluence

		decay := DecayFactor(ageDays, stalenessHalfLifeDays)
		finalConfidence := math.Min(confidence*decay*frecencyBoost, 1.0)

		if finalConfidence >= minConfidenceToShow {
			candidates = append(candidates, Suggestion{
				PluginID: it.PluginID,
				ItemID:   it.Item.Item.ID,
				Score:    finalConfidence,
				Reasons:  reasons,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	candidates = dedupeByItemID(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func dedupeByItemID(candidates []Suggestion) []Suggestion {
	seen := make(map[string]bool, len(candidates))
	out := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.ItemID] {
			continue
		}
		seen[c.ItemID] = true
		out = append(out, c)
	}
	return out
}

func itemConfidence(it *index.IndexedItem, ctx Context, allItems []index.FrecentItem, totalLaunches uint64) (float64, []Reason) {
	frec := it.Frecency
	acc := newAccumulator(frec.Count)

	acc.addArraySignal(frec.HourSlotCounts[:], ctx.Hour, 3, 0.1, SignalWeights.Time, Reason{Kind: "time_of_day"})
	acc.addArraySignal(frec.DayOfWeekCounts[:], ctx.Weekday, 3, 0.1, SignalWeights.Day, Reason{Kind: "day_of_week"})

	if ctx.Workspace != "" {
		acc.addMapSignal(frec.WorkspaceCounts, ctx.Workspace, 2, 0.15, SignalWeights.Workspace, Reason{Kind: "workspace", Value: ctx.Workspace})
	}
	if ctx.Monitor != "" {
		acc.addMapSignal(frec.MonitorCounts, ctx.Monitor, 2, 0.15, SignalWeights.Monitor, Reason{Kind: "monitor", Value: ctx.Monitor})
	}

	addSequenceSignal(acc, it, ctx, allItems, totalLaunches)
	addRunningAppsSignal(acc, it, ctx)

	acc.addFlagSignal(ctx.IsSessionStart, frec.SessionStartCount, 0.15, SignalWeights.Session, Reason{Kind: "session_start"})
	acc.addFlagSignal(ctx.IsResumeFromIdle, frec.ResumeFromIdleCount, 0.15, SignalWeights.ResumeFromIdle, Reason{Kind: "resume_from_idle"})

	addStreakSignal(acc, frec, ctx.NowMS)

	acc.addIfSignificant(frec.LaunchFromEmptyCount, 0.15, SignalWeights.LaunchFromEmpty, Reason{Kind: "quick_launch"})

	if ctx.DisplayCount > 0 {
		acc.addMapSignal(frec.DisplayCountCounts, strconv.Itoa(ctx.DisplayCount), 2, 0.15, SignalWeights.DisplayCount, Reason{Kind: "display_count", Count: ctx.DisplayCount})
	}
	if ctx.SessionDurationIdx >= 0 && ctx.SessionDurationIdx < len(frec.SessionDurationCounts) {
		acc.addArraySignal(frec.SessionDurationCounts[:], ctx.SessionDurationIdx, 2, 0.1, SignalWeights.SessionDuration, Reason{Kind: "session_duration", Count: ctx.SessionDurationIdx})
	}

	return acc.finish()
}

func addSequenceSignal(acc *accumulator, it *index.IndexedItem, ctx Context, allItems []index.FrecentItem, totalLaunches uint64) {
	if ctx.LastApp == "" {
		return
	}
	frec := it.Frecency
	seqCount := frec.LaunchedAfter[ctx.LastApp]
	if seqCount < acc.minEvents {
		return
	}

	var lastAppCount uint64
	for _, other := range allItems {
		if other.Item.Item.AppID == ctx.LastApp || other.Item.Item.ID == ctx.LastApp {
			lastAppCount = other.Item.Frecency.Count
			break
		}
	}

	seqConfidence := SequenceConfidence(seqCount, lastAppCount, frec.Count, totalLaunches, acc.minEvents)
	if seqConfidence > minSequenceConfidence {
		acc.addScore(seqConfidence, SignalWeights.Sequence, Reason{Kind: "after_app", Value: ctx.LastApp})
	}
}

func addRunningAppsSignal(acc *accumulator, it *index.IndexedItem, ctx Context) {
	if len(ctx.RunningApps) == 0 {
		return
	}
	frec := it.Frecency
	var bestScore float64
	var matchedApp string

	for _, running := range ctx.RunningApps {
		if it.Item.AppID == running {
			continue
		}
		coCount := frec.LaunchedAfter[running]
		if coCount >= acc.minEvents {
			score := WilsonScoreDefault(coCount, frec.Count)
			if score > bestScore {
				bestScore = score
				matchedApp = running
			}
		}
	}

	if bestScore > minRunningAppsScore {
		acc.addScore(bestScore, SignalWeights.RunningApps, Reason{Kind: "used_with_app", Value: matchedApp})
	}
}

func addStreakSignal(acc *accumulator, frec index.FrecencyCounters, nowMS int64) {
	if frec.ConsecutiveDays < 3 {
		return
	}
	t := time.UnixMilli(nowMS)
	today := t.Format("2006-01-02")
	yesterday := t.AddDate(0, 0, -1).Format("2006-01-02")
	if frec.LastConsecutiveDate != today && frec.LastConsecutiveDate != yesterday {
		return
	}
	streakScore := math.Min(float64(frec.ConsecutiveDays)/10.0, 1.0)
	acc.addScore(streakScore, SignalWeights.Streak, Reason{Kind: "streak", Count: int(frec.ConsecutiveDays)})
}
