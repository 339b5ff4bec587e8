/*
Package pipeline implements the intent pipeline: a small state machine that turns an
utterance into an Outcome.

There are three ways in:

  - discovery: the matcher ranks candidate verbs; comparable candidates produce a
    ClarifyVerb, a single winner is checked by SemReg and then generated.
  - forced verb: the user picked an option; the matcher is never consulted and exactly
    the picked verb is checked and generated.
  - macro: a recognised macro is expanded and every verb in the expansion is extracted
    and checked.

All three end at the same SemReg check. Generated DSL is re-extracted and checked as a
whole unless the generator is configured as trusted. The pipeline never stages DSL and
never touches session state.
*/
package pipeline
