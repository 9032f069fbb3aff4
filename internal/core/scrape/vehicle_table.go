package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/plateworks/fordon/internal/core/vehicle"
)

var (
	yearRe     = regexp.MustCompile(`^\d{4}$`)
	acquiredRe = regexp.MustCompile(`^\d{4}-\d{2}(-\d{2})?$`)
)

// =============================================================================
// Vehicle Table Fragment
// =============================================================================

// VehicleTable extracts vehicle rows from the dynamically loaded vehicles
// table fragment of a profile page. Rows without a class attribute or
// without a vehicle link are skipped.
func VehicleTable(html string) ([]vehicle.VehicleSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var rows []vehicle.VehicleSummary

	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if _, hasClass := tr.Attr("class"); !hasClass {
			return
		}
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		link := tr.Find("a").FilterFunction(hrefMatches(vehicleLinkRe)).First()
		if link.Length() == 0 {
			return
		}

		row := vehicle.VehicleSummary{
			Model: strings.TrimSpace(link.Text()),
		}
		if m := vehicleLinkRe.FindStringSubmatch(link.AttrOr("href", "")); m != nil {
			row.Regnr = strings.ToUpper(m[1])
		}

		// Columns: make/model, regnr, color, type, model year, acquired.
		cells.Each(func(_ int, td *goquery.Selection) {
			text := strings.TrimSpace(td.Text())

			if td.HasClass("mono") {
				row.Regnr = strings.ToUpper(text)
			}
			if td.Find("div.color").Length() > 0 {
				row.Color = text
			}
			if yearRe.MatchString(text) {
				if year, err := strconv.Atoi(text); err == nil {
					row.Year = year
				}
			}
			switch {
			case acquiredRe.MatchString(text):
				row.DateAcquired = text
			case strings.Contains(text, "år sedan") || strings.Contains(text, "mån sedan"):
				row.OwnershipTime = text
			}
		})

		for _, class := range strings.Fields(tr.AttrOr("class", "")) {
			if status := vehicle.StatusFromRowClass(class); status != vehicle.StatusUnknown {
				row.Status = status
				break
			}
		}

		rows = append(rows, row)
	})

	return rows, nil
}
