package sqlinline

const QInsertHistory = `--sql 3f7c21aa-5d44-4be1-9d02-6c1f08a4e9b7
insert into translation_history (id, user_id, source_text, target_langs, results, credits_used, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::text[], $5::jsonb, $6::bigint, now());
`

const QListHistoryByUser = `--sql 8be4d0c2-91a7-4f3e-b6d5-2e9a70c13f48
select id, source_text, target_langs, results, credits_used, created_at
from translation_history
where user_id = $1::uuid
order by created_at desc
limit $2::int;
`
