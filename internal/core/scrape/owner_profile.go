package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/plateworks/fordon/internal/core/vehicle"
)

var (
	postalRe       = regexp.MustCompile(`^(\d{5})\s+(.+)$`)
	personLineRe   = regexp.MustCompile(`^(.+?), en (\w+) som är (\d+) år.+bor i (.+?),`)
	personnummerRe = regexp.MustCompile(`(\d{8}-\d{4})`)
)

// =============================================================================
// Owner Profile Page
// =============================================================================

// OwnerProfilePage extracts the full owner record from a profile page:
// contact boxes, the personal description section and the vehicle listings.
func OwnerProfilePage(html, profileID string) (*vehicle.OwnerProfile, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	profile := &vehicle.OwnerProfile{ProfileID: profileID}
	parseActionBoxes(doc, profile)
	parseProfileSections(doc, profile)
	return profile, nil
}

// parseActionBoxes reads the address and phone call-to-action boxes.
func parseActionBoxes(doc *goquery.Document, profile *vehicle.OwnerProfile) {
	doc.Find("div.action-box").Each(func(_ int, box *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(box.Find("strong").First().Text()))

		switch label {
		case "adress":
			paragraphs := box.Find("p")
			if paragraphs.Length() >= 1 {
				profile.Address = strings.TrimSpace(paragraphs.Eq(0).Text())
			}
			if paragraphs.Length() >= 2 {
				postal := strings.TrimSpace(paragraphs.Eq(1).Text())
				if m := postalRe.FindStringSubmatch(postal); m != nil {
					profile.PostalCode = m[1]
					profile.PostalCity = m[2]
				}
			}
		case "telefon":
			phone := strings.TrimSpace(box.Find("p").First().Text())
			if phone != "" && !strings.Contains(strings.ToLower(phone), "inga") {
				profile.Phone = phone
			}
		}
	})
}

// parseProfileSections walks the page sections for the personal
// description and the two vehicle listings (the owner's own vehicles and
// other vehicles registered at the same address).
func parseProfileSections(doc *goquery.Document, profile *vehicle.OwnerProfile) {
	doc.Find("section").Each(func(_ int, section *goquery.Selection) {
		text := strings.TrimSpace(section.Text())

		if strings.Contains(text, "privatperson") ||
			strings.Contains(text, "bor i") ||
			strings.Contains(text, "år gammal") {
			parsePersonParagraphs(section, profile)
		}

		heading := strings.ToLower(strings.TrimSpace(section.Find("h2").First().Text()))
		switch {
		case strings.Contains(heading, "andra fordon"):
			first := strings.ToLower(strings.TrimSpace(section.Find("p").First().Text()))
			if strings.Contains(first, "inga") {
				profile.AddressVehicles = []vehicle.VehicleRef{}
			} else {
				profile.AddressVehicles = VehicleLinks(section)
			}
		case strings.Contains(heading, "fordon"):
			profile.Vehicles = summariesFromRefs(VehicleLinks(section))
		}
	})
}

// parsePersonParagraphs extracts name, age, city and personnummer from the
// free-text paragraphs of the personal section.
func parsePersonParagraphs(section *goquery.Selection, profile *vehicle.OwnerProfile) {
	section.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())

		if m := personLineRe.FindStringSubmatch(text); m != nil {
			profile.Name = m[1]
			profile.PersonType = m[2]
			if age, err := strconv.Atoi(m[3]); err == nil {
				profile.Age = age
			}
			profile.City = m[4]
			return
		}

		if m := personnummerRe.FindStringSubmatch(text); m != nil {
			profile.Personnummer = m[1]
		}
	})
}

// VehicleLinks collects vehicle page links under the given element.
func VehicleLinks(s *goquery.Selection) []vehicle.VehicleRef {
	var refs []vehicle.VehicleRef

	s.Find("a").FilterFunction(hrefMatches(vehicleLinkRe)).Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		m := vehicleLinkRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		regnr := strings.ToUpper(m[1])
		text := strings.TrimSpace(a.Text())
		if regnr == "" || text == "" {
			return
		}
		refs = append(refs, vehicle.VehicleRef{
			Regnr:       regnr,
			Description: text,
			URL:         href,
		})
	})

	return refs
}

// summariesFromRefs lifts plain vehicle links into summary rows so the
// profile's vehicle list has a single shape whether it was filled from
// links or from the richer vehicles table.
func summariesFromRefs(refs []vehicle.VehicleRef) []vehicle.VehicleSummary {
	summaries := make([]vehicle.VehicleSummary, 0, len(refs))
	for _, ref := range refs {
		summaries = append(summaries, vehicle.VehicleSummary{
			Regnr: ref.Regnr,
			Model: ref.Description,
		})
	}
	return summaries
}
