package challenge

import "upholdAPI/internal/tracking"

// Apply folds one progress update into the participation against the
// challenge's target. CurrentProgress only ever rises; a stale or equal
// value still refreshes stage progress and the streak but crosses no
// milestones.
func Apply(p *Participation, c *Challenge, u *ProgressUpdate) Outcome {
	oldPct := p.ProgressPercentage

	if u.NewValue > p.CurrentProgress {
		p.CurrentProgress = u.NewValue
	}
	p.ProgressPercentage = percentage(p.CurrentProgress, c.TargetValue)

	if u.Stage > 0 && u.Stage <= stageCap(c) {
		if p.StageProgress == nil {
			p.StageProgress = make(map[int]float64)
		}
		if pct := stagePercentage(c, u.Stage, p.CurrentProgress); pct > p.StageProgress[u.Stage] {
			p.StageProgress[u.Stage] = pct
		}
	}

	updateStreak(p, u)

	var out Outcome
	for _, m := range PercentageMilestones {
		if p.MilestonesAchieved[m] {
			continue
		}
		if oldPct < float64(m) && float64(m) <= p.ProgressPercentage {
			if p.MilestonesAchieved == nil {
				p.MilestonesAchieved = make(map[int]bool)
			}
			p.MilestonesAchieved[m] = true
			out.CrossedMilestones = append(out.CrossedMilestones, m)
		}
	}

	if p.ProgressPercentage >= 100 && p.CompletedAt == nil {
		t := u.Timestamp
		p.CompletedAt = &t
		out.Completed = true
	}

	return out
}

// updateStreak maintains the in-challenge daily streak: consecutive
// calendar days with at least one progress report.
func updateStreak(p *Participation, u *ProgressUpdate) {
	if u.Timestamp.IsZero() {
		return
	}
	switch {
	case p.LastProgressAt == nil:
		p.CurrentStreak = 1
	default:
		switch tracking.CalendarDaysBetween(*p.LastProgressAt, u.Timestamp) {
		case 0:
			// same day, streak unchanged
		case 1:
			p.CurrentStreak++
		default:
			p.CurrentStreak = 1
		}
	}
	if p.CurrentStreak > p.BestStreak {
		p.BestStreak = p.CurrentStreak
	}
	t := u.Timestamp
	p.LastProgressAt = &t
}

// stagePercentage maps overall progress onto one stage's slice of the
// target. Stages split the target evenly: stage k covers
// ((k-1)*target/n, k*target/n].
func stagePercentage(c *Challenge, stage int, progress float64) float64 {
	slice := c.TargetValue / float64(stageCap(c))
	return percentage(progress-float64(stage-1)*slice, slice)
}

func stageCap(c *Challenge) int {
	if c.StageCount < 1 {
		return 1
	}
	return c.StageCount
}

func percentage(value, target float64) float64 {
	if target <= 0 {
		return 100
	}
	pct := value / target * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
