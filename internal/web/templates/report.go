package templates

import (
	"context"
	"io"

	"github.com/JonMunkholm/joyeria/internal/core"
)

const reportStyles = `
body{font-family:Georgia,serif;margin:2rem;color:#111}
.brand{font-size:1.6rem;letter-spacing:.08em;text-transform:uppercase;border-bottom:2px solid #b45309;padding-bottom:.5rem}
.meta{color:#555;margin:.5rem 0 1.5rem}
table{border-collapse:collapse;width:100%;font-size:.85rem}
th{background:#fef3c7;text-align:left}
th,td{border:1px solid #d6d3d1;padding:.35rem .5rem}
footer{margin-top:1.5rem;font-size:.8rem;color:#555}
@media print{body{margin:0}}
`

// Printer renders reports with ReportDocument.
type Printer struct{}

// RenderReport implements core.ReportRenderer.
func (Printer) RenderReport(w io.Writer, r core.Report) error {
	return ReportDocument(r).Render(context.Background(), w)
}
