package knowledge

import "github.com/morozRed/medkb/internal/normalize"

const DescriptionUnavailable = "Description not available."

// Info holds the free-text metadata for diseases, keyed by disease key.
type Info struct {
	Descriptions map[string]string
	Precautions  map[string][]string
}

// DiseaseDetail is what callers show for a diagnosed disease.
type DiseaseDetail struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Precautions []string `json:"precautions"`
}

// Detail resolves the display record for a disease key.
func (i Info) Detail(disease string) DiseaseDetail {
	detail := DiseaseDetail{
		Key:         disease,
		Name:        normalize.Display(disease),
		Description: DescriptionUnavailable,
		Precautions: []string{},
	}
	if desc, ok := i.Descriptions[disease]; ok && desc != "" {
		detail.Description = desc
	}
	if precautions, ok := i.Precautions[disease]; ok {
		detail.Precautions = append(detail.Precautions, precautions...)
	}
	return detail
}

// Details resolves every key in order.
func (i Info) Details(diseases []string) []DiseaseDetail {
	out := make([]DiseaseDetail, 0, len(diseases))
	for _, disease := range diseases {
		out = append(out, i.Detail(disease))
	}
	return out
}
