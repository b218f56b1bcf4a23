package triage

import "reviewbot/internal/domain"

// Prompt templates. {app} is the configured app name; the remaining
// placeholders are bound per call.

const reviewUserPrompt = "Review: {review}\n\nOutput:"

const safetySystemPrompt = `You are an expert at identifying spam and NSFW reviews among app store reviews. You are given a review provided by a user for the app {app}. You have to label the review as spam, nsfw or notspam. The output should be a JSON with fields "category" and "reason". The "category" field should be one of 'spam', 'nsfw' or 'notspam'. The "reason" field should be a string explaining the reason for the category.`

const classifySystemPrompt = `You are an expert at labelling a given app store review as bug, feature_request, question or feedback. You are given a review provided by a user for the app {app}. You have to label the review as bug, feature_request, question or feedback. The output should be a JSON with fields "category", "summary" and "reason". The "category" field should be one of "bug", "feature_request", "question" or "feedback". The "summary" field should be a string summarizing the review in 20 words. The "reason" field should be a string explaining the reason for the category.`

// dedupUserPrompt carries the prior summaries of the bucket, joined without
// a separator, followed by the review under test.
const dedupUserPrompt = "Known Summaries: {summaries}, query: {query}\n\n\nSummary: {review}\n\nOutput:"

var dedupSystemPrompts = map[domain.Category]string{
	domain.CategoryBug:            `You are an expert in understanding and summarising bug reports. You are given a list of summaries and a bug reported by a customer. Please answer in JSON format with a field "answer". "answer" should be just a single number: 0 if a similar bug report does not exist in the list, or 1 if a similar bug report exists in the list. Return 0 if the summaries list is empty.`,
	domain.CategoryFeatureRequest: `You are an expert in understanding technical feature requests. You are given a list of feature request summaries and a customer feature request. Please answer in JSON format with a field "answer". "answer" should be just a single number: 0 if a similar feature request does not exist in the list, or 1 if a similar feature request exists in the list. Return 0 if the summaries list is empty.`,
	domain.CategoryQuestion:       `You are an expert in understanding customer questions. You are given a list of summaries and a customer question. Please answer in JSON format with a field "answer". "answer" should be just a single number: 0 if a similar customer question does not exist in the list, or 1 if a similar customer question exists in the list. Return 0 if the summaries list is empty.`,
	domain.CategoryFeedback:       `You are an expert in understanding customer feedback. You are given a list of feedback summaries and a customer feedback. Please answer in JSON format with a field "answer". "answer" should be just a single number: 0 if a similar customer feedback does not exist in the list, or 1 if a similar customer feedback exists in the list. Return 0 if the summaries list is empty.`,
}

const bugImpactSystemPrompt = `You are an expert at understanding the business impact of a bug. You are given a review provided by a user for the app {app}. The output should be a JSON with fields "impact", "severity" and "solution". The "impact" field should have a business impact explanation in under 50 words. The "severity" field should be a single number between 0 and 10. The "solution" field should have a potential fix to the bug in under 50 words.`

const featureImpactSystemPrompt = `You are an expert at understanding the business impact of a feature request. You are given a review provided by a user for the app {app}. The output should be a JSON with fields "impact" and "severity". The "impact" field should have a business impact explanation in under 40 words. The "severity" field should be a single number between 0 and 10.`

type digestPrompt struct {
	category domain.Category
	system   string
	prefix   string
}

// digestPrompts are issued in this order at the end of a run.
var digestPrompts = []digestPrompt{
	{
		category: domain.CategoryFeatureRequest,
		system:   `You are an expert at understanding feature requests. You are given a list of feature request summaries provided by users of the app {app}. The output should be a JSON with field "answer". The "answer" field should have an explanation of the top requested feature in less than 50 words.`,
		prefix:   "Top requested feature: ",
	},
	{
		category: domain.CategoryBug,
		system:   `You are an expert at understanding reported bugs. You are given a list of bug summaries provided by users of the app {app}. The output should be a JSON with field "answer". The "answer" field should have an explanation of the top reported bug in less than 50 words.`,
		prefix:   "Top reported bug: ",
	},
	{
		category: domain.CategoryFeedback,
		system:   `You are an expert at understanding customer feedback. You are given a list of feedback summaries provided by users of the app {app}. The output should be a JSON with field "answer". The "answer" field should have an explanation of the best or top feedback of the customers in less than 50 words.`,
		prefix:   "Top customer feedback: ",
	},
}

const knowledgeGapSystemPrompt = `You are an expert at understanding the business intricacies and filling customer knowledge gaps. You are given a list of questions provided by users of the app {app}. The output should be a JSON with field "answer". The "answer" field should have an explanation of the knowledge gaps of the customers in less than 500 words.`
