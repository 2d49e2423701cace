// internal/steps/delivery/send-consultation/render.go
package sendconsultation

import (
	"fmt"
	"strings"

	"visa-guru/internal/models"
)

func subject(req *models.ConsultationRequest) string {
	return fmt.Sprintf("Your %s visa consultation", req.DestinationCountry)
}

// renderBody lays the consultation out as plain text.
func renderBody(req *models.ConsultationRequest, result *models.ConsultationResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Consultation %s\n", result.ConsultationID)
	fmt.Fprintf(&b, "%s to %s, %s\n\n", req.Nationality, req.DestinationCountry, req.TravelPurpose)

	b.WriteString("RISK ASSESSMENT\n")
	fmt.Fprintf(&b, "%s\nConfidence score: %d/100\n", result.RiskAssessment, result.ConfidenceScore)
	fmt.Fprintf(&b, "Estimated processing time: %s\n\n", result.EstimatedProcessingTime)

	b.WriteString("DOCUMENTS REQUIRED\n")
	for _, doc := range result.DocumentsRequired {
		fmt.Fprintf(&b, "[%s] %s: %s\n", strings.ToUpper(string(doc.Priority)), doc.Name, doc.Description)
		if doc.Notes != "" {
			fmt.Fprintf(&b, "    %s\n", doc.Notes)
		}
	}
	b.WriteString("\n")

	b.WriteString("STRATEGIC NOTES\n")
	for _, note := range result.StrategicNotes {
		fmt.Fprintf(&b, "- %s\n", note)
	}
	b.WriteString("\n")

	b.WriteString("COVER LETTER\n")
	b.WriteString(strings.TrimSpace(result.CoverLetter))
	b.WriteString("\n\n")

	b.WriteString("SOURCES\n")
	for _, source := range result.Sources {
		fmt.Fprintf(&b, "- %s\n", source)
	}

	return b.String()
}
