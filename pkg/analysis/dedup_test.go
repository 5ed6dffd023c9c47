package analysis

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/team-Plog/plog-sub000/pkg/models"
)

var _ = Describe("DedupInsights", func() {
	It("drops a near-identical insight repeated in a narrower category", func() {
		categories := map[string]models.SubAnalysis{
			"comprehensive": {Insights: []string{"response time degrades under sustained load"}},
			"response_time": {Insights: []string{"response time degrades under sustained load"}},
			"tps":           {Insights: []string{"throughput drops as concurrency rises"}},
			"error_rate":    {Insights: []string{}},
			"resource_usage": {Insights: []string{}},
		}

		deduped := DedupInsights(categories)

		Expect(deduped["comprehensive"].Insights).To(ConsistOf("response time degrades under sustained load"))
		Expect(deduped["response_time"].Insights).To(BeEmpty())
		Expect(deduped["tps"].Insights).To(ConsistOf("throughput drops as concurrency rises"))
	})

	It("keeps distinct insights across every category", func() {
		categories := map[string]models.SubAnalysis{
			"comprehensive":  {Insights: []string{"overall performance is stable"}},
			"response_time":  {Insights: []string{"p99 latency spikes during stage two"}},
			"tps":            {Insights: []string{"throughput tracks target closely"}},
			"error_rate":     {Insights: []string{"errors stay below one percent"}},
			"resource_usage": {Insights: []string{"memory climbs steadily across the run"}},
		}

		deduped := DedupInsights(categories)

		for category, sub := range categories {
			Expect(deduped[category].Insights).To(Equal(sub.Insights))
		}
	})
})
