// Package scrape extracts domain records from registry HTML pages.
// All functions are pure: markup in, structs out, no I/O.
package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/plateworks/fordon/internal/core/vehicle"
)

var (
	profileLinkRe = regexp.MustCompile(`/brukare/`)
	vehicleLinkRe = regexp.MustCompile(`/fordon/([a-zA-Z0-9]+)`)
	mileageRe     = regexp.MustCompile(`([\d\s\x{00a0}]+)\s*mil(\d{4}-\d{2}-\d{2})`)
)

// actionValuePrefixes mark <span class="value"> entries that are site
// call-to-action buttons rather than data values.
var actionValuePrefixes = []string{"Hämta ", "Jämför ", "Räkna "}

// =============================================================================
// Vehicle Page
// =============================================================================

// VehiclePage extracts the full vehicle record from a registry vehicle page.
func VehiclePage(html, regnr string) (*vehicle.Vehicle, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	v := &vehicle.Vehicle{
		Regnr:          regnr,
		PageTitle:      pageTitle(doc),
		Data:           labelValueSections(doc),
		Owner:          ownerBlock(doc),
		MileageHistory: mileageHistory(doc),
	}
	return v, nil
}

// pageTitle returns the document title with the site suffix removed.
func pageTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	title = strings.TrimSuffix(title, " - Biluppgifter.se")
	return strings.TrimSpace(title)
}

// labelValueSections collects label/value pairs grouped per page section.
// Sections are named by their <h2> heading, falling back to the element id.
func labelValueSections(doc *goquery.Document) map[string]map[string]string {
	sections := make(map[string]map[string]string)

	doc.Find("section").Each(func(_ int, section *goquery.Selection) {
		name := strings.TrimSpace(section.Find("h2").First().Text())
		if name == "" {
			name = section.AttrOr("id", "")
		}
		if name == "" {
			return
		}

		data := make(map[string]string)
		section.Find("li").Each(func(_ int, li *goquery.Selection) {
			label := strings.TrimSpace(li.Find("span.label").First().Text())
			value := strings.TrimSpace(li.Find("span.value").First().Text())
			if label == "" || value == "" {
				return
			}
			for _, prefix := range actionValuePrefixes {
				if strings.HasPrefix(value, prefix) {
					return
				}
			}
			data[label] = value
		})

		if len(data) > 0 {
			sections[name] = data
		}
	})

	return sections
}

// =============================================================================
// Owner Block
// =============================================================================

// ownerBlock extracts the current owner and ownership history from the
// owner-history section of a vehicle page. A page without that section
// yields an empty block.
func ownerBlock(doc *goquery.Document) vehicle.Owner {
	var owner vehicle.Owner

	section := doc.Find("section#owner-history").First()
	if section.Length() == 0 {
		return owner
	}

	intro := section.Find("p").First()
	if intro.Length() > 0 {
		owner.Summary = strings.TrimSpace(intro.Text())

		if ref, ok := profileRef(intro.Find("a").FilterFunction(hrefMatches(profileLinkRe)).First()); ok {
			intro.Find("em").Each(func(_ int, em *goquery.Selection) {
				text := strings.TrimSpace(em.Text())
				if after, found := strings.CutPrefix(text, "från "); found {
					ref.City = after
				}
			})
			owner.CurrentOwner = &ref
		}
	}

	section.Find("li").Each(func(_ int, li *goquery.Selection) {
		if _, hasClass := li.Attr("class"); !hasClass {
			return
		}

		info := li.Find("div.info").First()
		if info.Length() == 0 {
			return
		}
		h3 := info.Find("h3").First()
		if h3.Length() == 0 {
			return
		}

		date := strings.TrimSpace(h3.Find("span.numb").First().Text())
		entryType := strings.TrimSpace(strings.Replace(h3.Text(), date, "", 1))

		entry := vehicle.OwnerEntry{
			Type:       entryType,
			OwnerClass: ownerClassFromAttr(li.AttrOr("class", "")),
			Date:       date,
		}

		if p := info.Find("p").First(); p.Length() > 0 {
			if ref, ok := profileRef(p.Find("a").FilterFunction(hrefMatches(profileLinkRe)).First()); ok {
				entry.Name = ref.Name
				entry.ProfileID = ref.ProfileID
				entry.ProfileURL = ref.ProfileURL
			}
			entry.Details = strings.TrimSpace(p.Text())
		}

		owner.History = append(owner.History, entry)
	})

	return owner
}

// profileRef builds an owner reference from a profile link anchor.
func profileRef(a *goquery.Selection) (vehicle.OwnerRef, bool) {
	if a.Length() == 0 {
		return vehicle.OwnerRef{}, false
	}
	href := a.AttrOr("href", "")
	if href == "" {
		return vehicle.OwnerRef{}, false
	}
	segments := strings.Split(strings.Trim(href, "/"), "/")
	return vehicle.OwnerRef{
		Name:       strings.TrimSpace(a.Text()),
		ProfileID:  segments[len(segments)-1],
		ProfileURL: href,
	}, true
}

// ownerClassFromAttr picks the owner class out of an element's class list.
func ownerClassFromAttr(classAttr string) vehicle.OwnerClass {
	for _, class := range strings.Fields(classAttr) {
		if c := vehicle.OwnerClassFromString(class); c != vehicle.OwnerUnknown {
			return c
		}
	}
	return vehicle.OwnerUnknown
}

// hrefMatches filters anchors whose href matches the given pattern.
func hrefMatches(re *regexp.Regexp) func(int, *goquery.Selection) bool {
	return func(_ int, s *goquery.Selection) bool {
		return re.MatchString(s.AttrOr("href", ""))
	}
}

// =============================================================================
// Mileage History
// =============================================================================

// mileageHistory extracts inspection odometer readings from the
// meter-history section. Entries that do not match the expected
// "<mil> mil<date>" shape are skipped.
func mileageHistory(doc *goquery.Document) []vehicle.MileageEntry {
	var history []vehicle.MileageEntry

	section := doc.Find("section#meter-history").First()
	if section.Length() == 0 {
		return history
	}

	section.Find("h3").Each(func(_ int, h3 *goquery.Selection) {
		if !strings.HasPrefix(strings.TrimSpace(h3.Text()), "Besiktning") {
			return
		}
		span := h3.Find("span.numb").First()
		if span.Length() == 0 {
			return
		}

		m := mileageRe.FindStringSubmatch(strings.TrimSpace(span.Text()))
		if m == nil {
			return
		}

		digits := strings.NewReplacer(" ", "", " ", "").Replace(m[1])
		mil, err := strconv.Atoi(digits)
		if err != nil {
			return
		}

		history = append(history, vehicle.MileageEntry{
			Date:       m[2],
			MileageMil: mil,
			MileageKm:  mil * 10,
			Kind:       "besiktning",
		})
	})

	return history
}
