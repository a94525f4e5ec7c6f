package e2e

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/shiori/internal/models"
)

// SectionFixture is one section of the corpus and the lines on each of its pages.
type SectionFixture struct {
	Section models.Section
	Ext     string
	Pages   [][]string
}

// QueryTestCase is a query and the absolute pages whose groups it must return, in order.
type QueryTestCase struct {
	Query       string
	Pages       []int
	Description string
}

// Corpus is a sectioned maintenance manual with known query answers.
type Corpus struct {
	Sections   []SectionFixture
	TestCases  []QueryTestCase
	TotalPages int
}

// sectionGap leaves unassigned absolute pages between neighbouring sections.
const sectionGap = 2

var systems = []string{
	"Hydraulic", "Landing Gear", "Fuel", "Electrical", "Pneumatic", "Avionics",
	"Cabin Pressure", "Flight Controls", "Ice Protection", "Oxygen", "Fire Detection", "Lighting",
}

var components = []string{
	"pump seal", "actuator rod", "check valve", "filter bowl",
	"pressure switch", "bleed line", "quick disconnect",
}

// BuildCorpus returns n sections of pagesPerSection pages. Every page carries a
// unique reference code, a system heading, and one component line.
func BuildCorpus(n, pagesPerSection int) *Corpus {
	c := &Corpus{}
	byComponent := make(map[string][]int)
	for i := 0; i < n; i++ {
		system := systems[i%len(systems)]
		ext := SupportedFileExtensions[i%len(SupportedFileExtensions)]
		start := 1 + i*(pagesPerSection+sectionGap)
		sf := SectionFixture{
			Section: models.Section{
				FilePath:  fmt.Sprintf("section-%02d%s", i+1, ext),
				Name:      fmt.Sprintf("Chapter %d", i+1),
				Title:     system + " System",
				StartPage: start,
				EndPage:   start + pagesPerSection - 1,
			},
			Ext: ext,
		}
		for p := 0; p < pagesPerSection; p++ {
			abs := start + p
			component := components[(i*pagesPerSection+p)%len(components)]
			code := ReferenceCode(i+1, p+1)
			sf.Pages = append(sf.Pages, []string{
				fmt.Sprintf("%s System procedure %d", system, p+1),
				fmt.Sprintf("Inspect the %s for wear", component),
				"Reference code " + code,
			})
			byComponent[component] = append(byComponent[component], abs)
			c.TestCases = append(c.TestCases, QueryTestCase{
				Query:       code,
				Pages:       []int{abs},
				Description: "code " + code,
			})
		}
		c.Sections = append(c.Sections, sf)
		c.TotalPages += pagesPerSection
	}
	for _, component := range components {
		if pages := byComponent[component]; len(pages) > 0 {
			c.TestCases = append(c.TestCases, QueryTestCase{
				Query:       "inspect " + component,
				Pages:       pages,
				Description: "component " + component,
			})
		}
	}
	return c
}

// ReferenceCode is fixed width so no code occurs inside another.
func ReferenceCode(section, page int) string {
	return fmt.Sprintf("RC%03dP%03d", section, page)
}

// SectionList returns the sections in document order.
func (c *Corpus) SectionList() []models.Section {
	out := make([]models.Section, len(c.Sections))
	for i, sf := range c.Sections {
		out[i] = sf.Section
	}
	return out
}

// WriteFiles writes every section's source file into dir.
func (c *Corpus) WriteFiles(dir string) error {
	for _, sf := range c.Sections {
		data, err := WriteMinimalFile(sf.Ext, sf.Pages)
		if err != nil {
			return fmt.Errorf("build %s: %w", sf.Section.FilePath, err)
		}
		if err := os.WriteFile(filepath.Join(dir, sf.Section.FilePath), data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", sf.Section.FilePath, err)
		}
	}
	return nil
}
