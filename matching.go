package careergraph

import (
	"sort"

	"github.com/soundprediction/careergraph/pkg/schema"
	"github.com/soundprediction/careergraph/pkg/types"
)

// rankDemand orders skills by demand descending, then by normalized name.
func rankDemand(demand []types.SkillDemand) {
	sort.SliceStable(demand, func(i, j int) bool {
		if demand[i].Demand != demand[j].Demand {
			return demand[i].Demand > demand[j].Demand
		}
		return demand[i].Key < demand[j].Key
	})
}

// matchJobs intersects each job's required skills with resumeSkills over
// canonical keys. Jobs without a common skill are dropped. Results are
// ordered by skill count descending, then job id ascending, and truncated
// to limit when limit is positive.
func matchJobs(canon *schema.Canonicalizer, jobs []types.JobListing, resumeSkills []string, limit int) []types.JobMatch {
	// canonical key -> first caller spelling
	wanted := make(map[string]string, len(resumeSkills))
	for _, s := range resumeSkills {
		key := canon.Key(s)
		if key == "" {
			continue
		}
		if _, ok := wanted[key]; !ok {
			wanted[key] = s
		}
	}

	matches := make([]types.JobMatch, 0)
	if len(wanted) == 0 {
		return matches
	}

	for _, job := range jobs {
		seen := make(map[string]bool, len(job.SkillKeys))
		var keys []string
		for _, s := range job.SkillKeys {
			// Stored keys predate any alias added since ingestion.
			key := canon.Key(s)
			if _, ok := wanted[key]; !ok || seen[key] {
				continue
			}
			seen[key] = true
			keys = append(keys, key)
		}
		if len(keys) == 0 {
			continue
		}

		sort.Strings(keys)
		matching := make([]string, len(keys))
		for i, k := range keys {
			matching[i] = wanted[k]
		}
		matches = append(matches, types.JobMatch{
			Job:            job,
			MatchingSkills: matching,
			SkillCount:     len(keys),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].SkillCount != matches[j].SkillCount {
			return matches[i].SkillCount > matches[j].SkillCount
		}
		return matches[i].Job.ID < matches[j].Job.ID
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
