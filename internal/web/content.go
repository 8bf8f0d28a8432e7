package web

// Feature is one product capability on the marketing pages.
type Feature struct {
	Title string
	Body  string
}

// Plan is one pricing tier.
type Plan struct {
	Name      string
	Price     string
	Period    string
	Blurb     string
	Features  []string
	CTA       string
	Highlight bool
}

// Testimonial is a customer quote.
type Testimonial struct {
	Quote  string
	Author string
	Role   string
}

// Features lists the product capabilities.
func Features() []Feature {
	return []Feature{
		{Title: "Tailored to every posting", Body: "Paste a job description or import it from a link. Your resume is rewritten around the skills and language that posting asks for."},
		{Title: "Keeps your LaTeX", Body: "Upload the .tex source you already maintain. The layout, fonts and macros stay yours and only the content changes."},
		{Title: "Bring your own model", Body: "Connect OpenAI, Anthropic, Google, Mistral, DeepSeek or any OpenAI-compatible endpoint with your own API key."},
		{Title: "PDF in one click", Body: "Every optimization is compiled to a PDF you can download, and you can edit the source and recompile in place."},
		{Title: "Cover letters and cold emails", Body: "Generate a matching cover letter or a short outreach email alongside the resume."},
		{Title: "Usage at a glance", Body: "The dashboard tracks how many resumes you tailored, which providers you used and how long jobs took."},
	}
}

// Plans lists the pricing tiers.
func Plans() []Plan {
	return []Plan{
		{
			Name: "Free", Price: "$0", Period: "forever",
			Blurb:    "Try it on your next application.",
			Features: []string{"5 stored templates", "Bring your own API key", "PDF compilation"},
			CTA:      "Start free",
		},
		{
			Name: "Pro", Price: "$12", Period: "per month",
			Blurb:     "For an active job search.",
			Features:  []string{"Everything in Free", "Cover letters and cold emails", "Usage dashboard", "Priority compilation"},
			CTA:       "Go Pro",
			Highlight: true,
		},
		{
			Name: "Teams", Price: "$39", Period: "per month",
			Blurb:    "For career coaches and bootcamps.",
			Features: []string{"Everything in Pro", "Shared templates", "Seat management", "Email support"},
			CTA:      "Contact us",
		},
	}
}

// Testimonials lists customer quotes for the landing page.
func Testimonials() []Testimonial {
	return []Testimonial{
		{Quote: "I stopped rewriting my resume by hand for every application. Three interviews in the first week.", Author: "Priya S.", Role: "Backend Engineer"},
		{Quote: "It kept my LaTeX template exactly as it was, which no other tool managed.", Author: "Marcus L.", Role: "Data Scientist"},
		{Quote: "The cover letter drafts alone saved me hours.", Author: "Elena R.", Role: "Product Designer"},
	}
}
