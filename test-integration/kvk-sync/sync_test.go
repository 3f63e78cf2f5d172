package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kvk-connect/kvk-sync/internal/kvk"
	"github.com/kvk-connect/kvk-sync/test-integration/kvk-sync/helpers"
)

const abonnementID = "8c1a3a54-52c1-4b8e-8f6e-6a9f1f3f5f10"

var day = time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)

var _ = Describe("kvk-sync", func() {
	var env *helpers.Environment

	BeforeEach(func() {
		api := helpers.NewKvKServer(abonnementID,
			[]helpers.Signaal{
				{ID: "sig-1", KvKNummer: "12345678", Timestamp: day.Add(9 * time.Hour)},
				{ID: "sig-2", KvKNummer: "12345678", Vestigingsnummer: "000038976579", Timestamp: day.Add(10 * time.Hour)},
				{ID: "sig-3", KvKNummer: "87654321", Timestamp: day.Add(11 * time.Hour)},
				{ID: "sig-late", KvKNummer: "11112222", Timestamp: day.Add(48 * time.Hour)},
			},
			helpers.Company{KvKNummer: "12345678", Naam: "Blooming Tandartsen",
				Vestigingen: []string{"000037178598", "000038976579"}},
			helpers.Company{KvKNummer: "87654321", Naam: "Holding zonder vestigingen"},
		)
		env = helpers.NewEnvironment(api)
		env.MustRun("migrate", "up", "--yes")
	})

	It("lists the subscriptions of the API key", func() {
		out := env.MustRun("abonnementen")
		Expect(out).To(ContainSubstring(abonnementID))
		Expect(out).To(ContainSubstring("Mutatieservice KvK-nummers"))
	})

	It("stores the signals of a manual window across pages", func() {
		env.MustRun("mutaties", "--manual",
			"--from", "2024-05-14", "--to", "2024-05-15", "--fetch-limit", "2")

		Expect(env.Count("SELECT COUNT(*) FROM signalen")).To(Equal(3))
		Expect(env.Count("SELECT COUNT(*) FROM signalen WHERE vestigingsnummer IS NULL")).To(Equal(2))
		Expect(env.API.Requests("/v1/abonnementen/{id}")).To(Equal(2))

		// Re-running the window upserts instead of duplicating
		env.MustRun("mutaties", "--manual", "--from", "2024-05-14", "--to", "2024-05-15")
		Expect(env.Count("SELECT COUNT(*) FROM signalen")).To(Equal(3))
	})

	It("prints a single signal by id and stores it on request", func() {
		out := env.MustRun("mutaties", "--signaal-id", "sig-late")
		Expect(out).To(ContainSubstring(`"kvknummer": "11112222"`))
		Expect(env.Count("SELECT COUNT(*) FROM signalen WHERE kvknummer = $1", "11112222")).To(Equal(0))

		env.MustRun("mutaties", "--signaal-id", "sig-late", "--store")
		Expect(env.Count("SELECT COUNT(*) FROM signalen WHERE kvknummer = $1", "11112222")).To(Equal(1))

		_, err := env.Run("mutaties", "--signaal-id", "unknown")
		Expect(err).To(HaveOccurred())
	})

	It("fills every gap after the signals are stored", func() {
		env.MustRun("mutaties", "--manual", "--from", "2024-05-14", "--to", "2024-05-15")

		By("fetching the missing base profiles")
		env.MustRun("basisprofiel", "--update-missing")
		Expect(env.Count("SELECT COUNT(*) FROM basisprofielen")).To(Equal(2))

		By("fetching the establishment lists")
		env.MustRun("vestigingen", "--update-missing")
		Expect(env.Count("SELECT COUNT(*) FROM vestigingen WHERE kvk_nummer = $1", "12345678")).To(Equal(2))
		Expect(env.Count("SELECT COUNT(*) FROM vestigingen WHERE vestigingsnummer = $1",
			kvk.GeenVestigingen)).To(Equal(1))

		By("fetching the establishment profiles, skipping the placeholder")
		env.MustRun("vestigingsprofiel", "--update-missing")
		Expect(env.Count("SELECT COUNT(*) FROM vestigingsprofielen")).To(Equal(2))
		Expect(env.API.Requests("/v1/vestigingsprofielen/{nummer}")).To(Equal(2))

		By("reporting no remaining gaps")
		out := env.MustRun("status")
		Expect(out).To(ContainSubstring("basisprofiel"))
		Expect(out).To(ContainSubstring("Newest signal: 2024-05-14T11:00:00Z"))

		basis := env.API.Requests("/v1/basisprofielen/{kvk}")
		env.MustRun("basisprofiel", "--update-missing")
		Expect(env.API.Requests("/v1/basisprofielen/{kvk}")).To(Equal(basis))
	})

	It("syncs explicit keys", func() {
		env.MustRun("basisprofiel", "--kvk", "12345678")
		Expect(env.Count("SELECT COUNT(*) FROM basisprofielen")).To(Equal(1))

		env.MustRun("vestigingsprofiel", "--kvk", "12345678")
		Expect(env.Count("SELECT COUNT(*) FROM vestigingsprofielen WHERE kvk_nummer = $1", "12345678")).To(Equal(2))
	})

	It("fails when every requested key fails", func() {
		_, err := env.Run("basisprofiel", "--kvk", "not-a-number")
		Expect(err).To(HaveOccurred())
		Expect(env.Count("SELECT COUNT(*) FROM basisprofielen")).To(Equal(0))
	})
})
