package main

import (
	"net/url"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/oukeidos/arcat/internal/version"
)

const githubURL = "https://github.com/oukeidos/arcat"

func buildAboutTab() fyne.CanvasObject {
	aboutSection := container.NewVBox(
		widget.NewLabelWithStyle("About", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewForm(
			widget.NewFormItem("App", widget.NewLabel("arcat")),
			widget.NewFormItem("Version", widget.NewLabel(version.Version)),
			widget.NewFormItem("Commit", widget.NewLabel(version.Commit)),
			widget.NewFormItem("Build", widget.NewLabel(version.BuildDate)),
			widget.NewFormItem("Links", buildLinksRow()),
		),
	)

	help := widget.NewLabel("Pick a table, then a parent row on the left. Click a cell and type in the\n" +
		"field above the rows; Enter applies the value. Moving to another row saves the\n" +
		"one you left. A refused row comes back with your values and the cell to fix.\n" +
		"Edits discarded by switching parents are kept in the journal (arcat journal list).")
	help.Wrapping = fyne.TextWrapWord

	return container.NewPadded(container.NewVScroll(container.NewVBox(
		aboutSection,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Editing", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		help,
	)))
}

func buildLinksRow() fyne.CanvasObject {
	return container.NewHBox(newHyperlink("GitHub", githubURL))
}

func newHyperlink(label, raw string) *widget.Hyperlink {
	u, _ := url.Parse(raw)
	return widget.NewHyperlink(label, u)
}
