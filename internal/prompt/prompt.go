// Package prompt renders system instructions for the completion provider.
//
// Every builder in this package is a pure function of its inputs: the same
// document, project, and reference state always produces byte-identical
// output. That property is load-bearing for reproducible debugging and for
// caching rendered prompts upstream, so no builder reads clocks, maps in
// iteration order, or anything else nondeterministic.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lumenlearn/lumen/internal/model"
)

const (
	// MaxReferenceDocs bounds how many retrieved knowledge docs are
	// rendered into one prompt.
	MaxReferenceDocs = 5

	// ReferenceCharBudget bounds each rendered reference entry.
	ReferenceCharBudget = 2000
)

// roleInstructions maps each document type to its opening instruction.
// Unknown types fall back to defaultInstruction.
var roleInstructions = map[model.DocumentType]string{
	model.DocTypePolicy: "You are a compliance policy specialist. You help organizations draft clear, " +
		"enforceable workplace policies that satisfy their regulatory obligations without unnecessary legalese.",
	model.DocTypeProcedure: "You are an operational procedure writer. You turn working knowledge into " +
		"step-by-step procedures that a trained worker can follow under time pressure, with hazards and " +
		"controls called out at the step where they apply.",
	model.DocTypeRiskAssessment: "You are a risk assessment specialist. You identify hazards, estimate " +
		"likelihood and severity, and recommend proportionate controls following the hierarchy of controls.",
	model.DocTypeToolboxTalk: "You are a safety communicator. You write short, engaging toolbox talks " +
		"that a supervisor can deliver to a crew in under ten minutes, focused on one topic with concrete examples.",
	model.DocTypeTrainingModule: "You are a workplace training designer. You build training content with " +
		"clear learning objectives, plain language, and knowledge checks that test understanding rather than recall.",
}

const defaultInstruction = "You are a compliance documentation assistant. You help organizations " +
	"create and maintain accurate, practical workplace documentation."

// closingBlock is appended to every document prompt regardless of type.
const closingBlock = `Guidelines:
- Write in clear, direct language appropriate for the document's audience.
- Be specific to this organization's context; avoid generic boilerplate.
- Where a regulatory requirement drives a statement, say which one.
- Use markdown headings and lists where they aid readability.
- If asked to produce section content, return only the content itself, with no preamble or commentary.`

// Render builds the system instruction for a document-scoped request.
// Sections must already be sorted by position; storage returns them that way.
func Render(doc model.Document, sections []model.Section, project *model.Project, refs []model.KnowledgeDoc, crossRefs []model.CrossRef) string {
	var b strings.Builder

	instruction, ok := roleInstructions[doc.Type]
	if !ok {
		instruction = defaultInstruction
	}
	b.WriteString(instruction)
	b.WriteString("\n\n")

	b.WriteString("Current document:\n")
	fmt.Fprintf(&b, "- Title: %s\n", doc.Title)
	fmt.Fprintf(&b, "- Type: %s\n", doc.Type)
	fmt.Fprintf(&b, "- Version: %s\n", doc.Version)
	fmt.Fprintf(&b, "- Status: %s\n", doc.Status)
	if doc.LocalContext != "" {
		fmt.Fprintf(&b, "- Notes: %s\n", doc.LocalContext)
	}

	if len(sections) > 0 {
		b.WriteString("\nSections:\n")
		for i, s := range sections {
			state := "empty"
			if s.HasContent() {
				state = "has content"
			}
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, s.Title, state)
		}
	}

	if project != nil {
		b.WriteString("\nOrganization context:\n")
		fmt.Fprintf(&b, "- Project: %s\n", project.Name)
		writeIfSet(&b, "Industry", project.Industry)
		writeIfSet(&b, "Company size", project.CompanySize)
		writeIfSet(&b, "Risk profile", project.RiskProfile)
		writeIfSet(&b, "Regulatory context", project.RegulatoryContext)
	}

	if len(refs) > 0 {
		b.WriteString("\nRelevant reference material from the organization's knowledge base:\n")
		n := len(refs)
		if n > MaxReferenceDocs {
			n = MaxReferenceDocs
		}
		for _, ref := range refs[:n] {
			fmt.Fprintf(&b, "\n### %s\n%s\n", ref.Title, truncate(ref.Content, ReferenceCharBudget))
		}
	}

	if len(crossRefs) > 0 {
		b.WriteString("\nRelated documents:\n")
		for _, cr := range crossRefs {
			fmt.Fprintf(&b, "- %s\n", cr.Description)
		}
	}

	b.WriteString("\n")
	b.WriteString(closingBlock)
	return b.String()
}

func writeIfSet(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "- %s: %s\n", label, value)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary so a multi-byte sequence is never cut
	// mid-encoding.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

// SectionGeneration wraps a caller prompt for a single-section generation
// request. The empty/has-content branch tells the model whether it is
// drafting fresh content or revising.
func SectionGeneration(section model.Section, userPrompt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate content for the section %q.\n", section.Title)
	if section.HasContent() {
		b.WriteString("The section already has content; revise or extend it according to the request below.\n")
		b.WriteString("Existing content:\n")
		b.WriteString(*section.Content)
		b.WriteString("\n")
	} else {
		b.WriteString("This section is currently empty.\n")
	}
	b.WriteString("\nRequest: ")
	b.WriteString(userPrompt)
	return b.String()
}

// EnhanceLesson builds the system and user prompts for lesson enhancement.
func EnhanceLesson(req model.EnhanceLessonRequest) (system, user string) {
	var b strings.Builder
	b.WriteString("You are a workplace training editor. Improve the lesson content you are given: ")
	b.WriteString("tighten the structure, add clear learning objectives at the top, convert dense prose ")
	b.WriteString("into lists where appropriate, and keep every factual claim from the original intact. ")
	b.WriteString("Return only the improved lesson in markdown.\n")
	writeIfSet(&b, "Category", req.Category)
	writeIfSet(&b, "Target audience", req.TargetAudience)
	system = b.String()

	user = fmt.Sprintf("Lesson: %s\n\n%s", req.LessonTitle, req.Content)
	return system, user
}

// Quiz builds the system and user prompts for quiz generation. The response
// contract (a JSON object under the key "questions") must match what the
// extract package looks for.
func Quiz(req model.GenerateQuizRequest, questionCount int) (system, user string) {
	var b strings.Builder
	b.WriteString("You are a workplace training assessor. Generate quiz questions that test understanding ")
	b.WriteString("of the lesson content, not surface recall. Each question must be answerable from the ")
	b.WriteString("lesson alone.\n")
	fmt.Fprintf(&b, "- Number of questions: %d\n", questionCount)
	writeIfSet(&b, "Difficulty", req.Difficulty)
	if len(req.QuestionTypes) > 0 {
		fmt.Fprintf(&b, "- Question types: %s\n", strings.Join(req.QuestionTypes, ", "))
	}
	b.WriteString(`
Respond with a JSON object of this shape:
{"questions": [{"id": "q1", "type": "multiple_choice", "question": "...", "options": ["..."], "correct_answer": "...", "explanation": "..."}]}
For true/false questions omit "options" and use "true" or "false" as the correct answer.`)
	system = b.String()

	user = fmt.Sprintf("Lesson: %s\n\n%s", req.LessonTitle, req.LessonContent)
	return system, user
}

// Scenario builds the system and user prompts for scenario generation.
func Scenario(req model.GenerateScenarioRequest) (system, user string) {
	var b strings.Builder
	b.WriteString("You are a workplace training designer. Turn the procedure you are given into a branching ")
	b.WriteString("decision scenario: a realistic situation, a sequence of decision points with plausible ")
	b.WriteString("options, and for each point the best choice with a short rationale grounded in the procedure.\n")
	writeIfSet(&b, "Scenario type", req.ScenarioType)
	writeIfSet(&b, "Difficulty", req.Difficulty)
	writeIfSet(&b, "Additional context", req.Context)
	b.WriteString(`
Respond with a JSON object of this shape:
{"scenario": {"title": "...", "setting": "...", "steps": [{"situation": "...", "options": ["..."], "best": "...", "rationale": "..."}]}}`)
	system = b.String()

	user = fmt.Sprintf("Procedure: %s\n\n%s", req.ProcedureTitle, req.ProcedureContent)
	return system, user
}

// Flashcards builds the system and user prompts for flashcard generation.
func Flashcards(req model.GenerateFlashcardsRequest, cardCount int) (system, user string) {
	var b strings.Builder
	b.WriteString("You are a workplace training designer. Extract the key facts, definitions, and ")
	b.WriteString("procedures from the content into flashcards. Fronts are short prompts or questions; ")
	b.WriteString("backs are concise, complete answers.\n")
	fmt.Fprintf(&b, "- Number of cards: %d\n", cardCount)
	writeIfSet(&b, "Category", req.Category)
	if len(req.FocusAreas) > 0 {
		fmt.Fprintf(&b, "- Focus areas: %s\n", strings.Join(req.FocusAreas, ", "))
	}
	b.WriteString(`
Respond with a JSON object of this shape:
{"flashcards": [{"id": "c1", "front": "...", "back": "...", "category": "..."}]}`)
	system = b.String()

	user = fmt.Sprintf("Content: %s\n\n%s", req.ContentTitle, req.Content)
	return system, user
}

// WrongAnswer builds the system and user prompts for wrong-answer feedback.
func WrongAnswer(req model.WrongAnswerRequest) (system, user string) {
	var b strings.Builder
	b.WriteString("You are a supportive workplace trainer. A learner answered a question incorrectly. ")
	b.WriteString("In two or three sentences, explain why their answer is wrong and why the correct answer ")
	b.WriteString("is right. Be encouraging; never condescending. Address the learner directly.\n")
	writeIfSet(&b, "Category", req.Category)
	system = b.String()

	var u strings.Builder
	fmt.Fprintf(&u, "Question: %s\n", req.Question)
	fmt.Fprintf(&u, "Learner's answer: %s\n", req.UserAnswer)
	fmt.Fprintf(&u, "Correct answer: %s\n", req.CorrectAnswer)
	if req.Explanation != "" {
		fmt.Fprintf(&u, "Reference explanation: %s\n", req.Explanation)
	}
	user = u.String()
	return system, user
}

// Debrief builds the system and user prompts for a scenario debrief.
func Debrief(req model.DebriefRequest) (system, user string) {
	system = "You are a workplace training coach. Review the learner's path through a decision scenario " +
		"and write a short debrief: what they got right, where they deviated from best practice and what " +
		"the consequence would be, and one concrete thing to focus on next time. Address the learner directly " +
		"in markdown."

	var u strings.Builder
	fmt.Fprintf(&u, "Scenario: %s\n", req.ScenarioTitle)
	fmt.Fprintf(&u, "Outcome: %s\n", req.Outcome)
	fmt.Fprintf(&u, "Time spent: %d seconds\n", req.TimeSpent)
	u.WriteString("Decisions taken:\n")
	for i, d := range req.Decisions {
		fmt.Fprintf(&u, "%d. %s\n", i+1, d)
	}
	if req.OptimalPath != "" {
		fmt.Fprintf(&u, "Optimal path: %s\n", req.OptimalPath)
	}
	user = u.String()
	return system, user
}
