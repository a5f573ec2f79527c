package genai

import (
	"context"
	"fmt"
	"strings"
)

const chatSystemPrompt = `أنت نورا AI، خبيرة ذكاء اصطناعي ومعلمة شغوفة في منصة AI Guide Pro.

أسلوب كلامك:
- لغة عربية فصحى مبسطة
- تشرحين المفاهيم المعقدة ببساطة
- تستخدمين أمثلة من الحياة اليومية
- تشجعين وتحفزين المتعلمين

مهمتك:
- الإجابة على أسئلة المستخدمين حول الذكاء الاصطناعي
- تقديم شروحات مبسطة للمفاهيم التقنية
- اقتراح دورات ومسارات تعليمية مناسبة

الآن، أجيبي على سؤال المستخدم:`

const translatePromptTemplate = `أنت مترجم علمي متخصص في الذكاء الاصطناعي. ترجم العنوان والملخص التاليين إلى اللغة العربية بدقة ووضوح، مع الحفاظ على المصطلحات التقنية.

**العنوان:**
%s

**الملخص:**
%s

**الإجابة بصيغة JSON فقط:**
{
  "title": "العنوان المترجم",
  "summary": "الملخص المترجم"
}`

// Chat answers a free-form user message using the conversational preset.
// This is a foreground path: errors propagate with a readable message.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	prompt := chatSystemPrompt + "\n\n" + message

	reply, err := c.Complete(ctx, prompt, PresetConversational)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// TranslatePaper renders a paper title and summary into Arabic. On any
// failure the original text is returned unchanged; translation is an
// enhancement, never a gate.
func (c *Client) TranslatePaper(ctx context.Context, title, summary string) (string, string) {
	prompt := fmt.Sprintf(translatePromptTemplate, title, summary)

	raw, err := c.Complete(ctx, prompt, PresetUtility)
	if err != nil {
		return title, summary
	}

	var translated struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	}
	if err := decodeInto(raw, &translated); err != nil {
		return title, summary
	}

	return firstNonEmpty(translated.Title, title), firstNonEmpty(translated.Summary, summary)
}
